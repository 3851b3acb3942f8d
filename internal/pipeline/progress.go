package pipeline

import "fmt"

// Phase names emitted by the Runner.
const (
	PhaseScan    = "scan"
	PhaseExtract = "extract"
	PhasePersist = "persist"
	PhaseResolve = "resolve"
)

// Status of a single progress unit.
type Status int

const (
	StatusPending Status = iota
	StatusWorking
	StatusComplete
	StatusFailed
)

// Event describes progress of one unit of pipeline work. Unit is a
// repo-relative path for extract events and empty for phase-wide events.
type Event struct {
	Phase   string
	Unit    string
	Status  Status
	Message string
}

// Reporter emits progress events through a buffered channel.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter() *Reporter {
	return &Reporter{
		ch: make(chan Event, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (r *Reporter) Emit(event Event) {
	select {
	case r.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the progress event channel.
func (r *Reporter) Close() {
	close(r.ch)
}

// FormatEvent formats an Event as a human-readable status line.
func FormatEvent(event Event) string {
	unit := event.Phase
	if event.Unit != "" {
		unit = event.Unit
	}
	switch event.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ %s (pending)", unit)
	case StatusWorking:
		return fmt.Sprintf("  ● %s...", unit)
	case StatusComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s: %s", unit, event.Message)
		}
		return fmt.Sprintf("  ✓ %s complete", unit)
	case StatusFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", unit, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", unit)
	}
}

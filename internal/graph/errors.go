package graph

import (
	"errors"
	"fmt"
)

// ErrTransient marks a persistence failure worth retrying (network,
// timeout). Store adapters wrap retryable errors with this sentinel; the
// retry helper checks it via errors.Is.
var ErrTransient = errors.New("transient persistence error")

// Skip records a syntax node that could not be mapped to a declaration or
// placeholder (anonymous or dynamic construct). Skips are observations, not
// errors: file processing continues.
type Skip struct {
	NodeType string `json:"nodeType"`
	Line     int    `json:"line"`
	Reason   string `json:"reason"`
}

// ConsistencyError reports a record-level invariant violation found in the
// graph: a placeholder with more than one RESOLVES_TO edge, an edge into a
// declaration that no longer exists, or a resolved flag with no edge at
// all. Fatal for that record only; HealPlaceholders repairs the record and
// reports one ConsistencyError per placeholder it reset.
type ConsistencyError struct {
	PlaceholderID string
	EdgeCount     int
}

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("placeholder %s has %d RESOLVES_TO edges", e.PlaceholderID, e.EdgeCount)
}

// BatchError wraps a failure isolated to one write batch. Other batches
// proceed; the failed batch is surfaced for re-queue, never silently
// dropped.
type BatchError struct {
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

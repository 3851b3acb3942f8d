package billing

import "fmt"

// Billing posts invoices against a ledger.
type Billing struct {
	ledger Ledger
}

// NewBilling returns a Billing backed by the given ledger.
func NewBilling(ledger Ledger) *Billing {
	return &Billing{ledger: ledger}
}

// Issue drafts a new invoice and posts it.
func (b *Billing) Issue(number string, total int64) (*Invoice, error) {
	inv := draftInvoice(number, total)
	if err := b.ledger.Post(inv); err != nil {
		return nil, fmt.Errorf("issue invoice %s: %w", number, err)
	}
	return inv, nil
}

// Find looks up a previously posted invoice.
func (b *Billing) Find(number string) (*Invoice, error) {
	inv, err := b.ledger.Lookup(number)
	if err != nil {
		return nil, fmt.Errorf("find invoice %s: %w", number, err)
	}
	return inv, nil
}

package billing

// Invoice is a single billable statement.
type Invoice struct {
	Number string
	Total  int64
	Paid   bool
}

// Ledger records posted invoices.
type Ledger interface {
	Post(inv *Invoice) error
	Lookup(number string) (*Invoice, error)
}

func draftInvoice(number string, total int64) *Invoice {
	return &Invoice{Number: number, Total: total}
}

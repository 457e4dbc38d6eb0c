package register

import (
	"invoicecontrol/internal/extraction"
	"invoicecontrol/pkg/models"
)

// Ledger is the per-PO budget state of one run, keyed by canonical PO
// number. Records are handed out by pointer so the reconciliation engine
// can charge them; nothing else mutates a ledger after loading.
type Ledger struct {
	records map[string]*models.POBudgetRecord
	order   []string
}

// NewLedger builds a ledger from already aggregated records. Later records
// with the same canonical PO number replace earlier ones.
func NewLedger(records ...models.POBudgetRecord) *Ledger {
	l := &Ledger{records: make(map[string]*models.POBudgetRecord, len(records))}
	for _, r := range records {
		l.put(r)
	}
	return l
}

func (l *Ledger) put(r models.POBudgetRecord) *models.POBudgetRecord {
	key := extraction.NormalizeIdentifier(r.PONumber)
	if existing, ok := l.records[key]; ok {
		*existing = r
		return existing
	}
	rec := r
	l.records[key] = &rec
	l.order = append(l.order, key)
	return &rec
}

// Lookup finds the record of a PO number in any spelling.
func (l *Ledger) Lookup(poNumber string) (*models.POBudgetRecord, bool) {
	key := extraction.NormalizeIdentifier(poNumber)
	if key == "" {
		return nil, false
	}
	r, ok := l.records[key]
	return r, ok
}

// Records returns copies of all records in register order.
func (l *Ledger) Records() []models.POBudgetRecord {
	out := make([]models.POBudgetRecord, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, *l.records[key])
	}
	return out
}

// Len returns the number of distinct POs.
func (l *Ledger) Len() int {
	return len(l.order)
}

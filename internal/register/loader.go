// Package register loads the PO register spreadsheet and aggregates it into
// one budget record per purchase order.
package register

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/tabular"
	"invoicecontrol/pkg/models"
)

// Register column names.
const (
	ColPONumber        = "PO_Number"
	ColTotalPOValue    = "Total_PO_Value"
	ColAlreadyInvoiced = "Amount_Already_Invoiced"
	ColRemaining       = "Remaining_Budget"
	ColClientName      = "Client_Name"
	ColProjectName     = "Project_Name"
)

// SheetName is the workbook sheet read when present.
const SheetName = "POs"

// RequiredColumns must all be present in a register.
var RequiredColumns = []string{ColPONumber, ColTotalPOValue, ColAlreadyInvoiced}

// Loader reads PO registers
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a register loader
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads the register at path and aggregates it.
func (l *Loader) Load(path string) (*Ledger, error) {
	const op = "Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: PO register not found: %w", op, err)
	}

	table, err := tabular.Read(path, SheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ledger, err := l.Aggregate(table)
	if err != nil {
		var colErr *ColumnError
		if errors.As(err, &colErr) {
			colErr.Path = path
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info().
		Str("path", path).
		Str("sheet", table.Sheet).
		Int("rows", len(table.Rows)).
		Int("pos", ledger.Len()).
		Msg("Loaded PO register")

	return ledger, nil
}

// Aggregate folds register rows into one record per canonical PO number:
// Total_PO_Value is the largest value seen, Amount_Already_Invoiced the sum,
// and the remaining budget is total minus invoiced unless the register
// supplies Remaining_Budget, in which case the smallest supplied value is
// kept.
func (l *Loader) Aggregate(table *tabular.Table) (*Ledger, error) {
	if missing := table.MissingColumns(RequiredColumns...); len(missing) > 0 {
		return nil, &ColumnError{Sheet: table.Sheet, Missing: missing}
	}

	var (
		colPO        = table.Column(ColPONumber)
		colTotal     = table.Column(ColTotalPOValue)
		colInvoiced  = table.Column(ColAlreadyInvoiced)
		colRemaining = table.Column(ColRemaining)
		colClient    = table.Column(ColClientName)
		colProject   = table.Column(ColProjectName)
	)

	type accumulator struct {
		record            models.POBudgetRecord
		supplied          decimal.Decimal
		hasSuppliedAmount bool
	}
	byPO := make(map[string]*accumulator)
	var order []string

	for i, row := range table.Rows {
		line := i + 2
		po := extraction.NormalizeIdentifier(table.Value(row, colPO))
		if po == "" {
			l.log.Warn().Int("row", line).Msg("Skipping register row without PO number")
			continue
		}

		acc, ok := byPO[po]
		if !ok {
			acc = &accumulator{record: models.POBudgetRecord{PONumber: po}}
			byPO[po] = acc
			order = append(order, po)
		}
		rec := &acc.record
		rec.SourceRows++

		total := l.number(table.Value(row, colTotal), ColTotalPOValue, line)
		if rec.SourceRows == 1 || total.GreaterThan(rec.TotalPOValue) {
			rec.TotalPOValue = total
		}
		rec.AmountAlreadyInvoiced = rec.AmountAlreadyInvoiced.Add(l.number(table.Value(row, colInvoiced), ColAlreadyInvoiced, line))

		if colRemaining >= 0 {
			if remaining := l.number(table.Value(row, colRemaining), ColRemaining, line); !remaining.IsZero() {
				if !acc.hasSuppliedAmount || remaining.LessThan(acc.supplied) {
					acc.supplied = remaining
				}
				acc.hasSuppliedAmount = true
			}
		}

		if rec.ClientName == "" {
			rec.ClientName = table.Value(row, colClient)
		}
		if rec.ProjectName == "" {
			rec.ProjectName = table.Value(row, colProject)
		}
	}

	if len(order) == 0 {
		l.log.Warn().Int("rows", len(table.Rows)).Msg("PO register has no PO rows, every invoice will be PO_NOT_FOUND")
	}

	records := make([]models.POBudgetRecord, 0, len(order))
	for _, po := range order {
		acc := byPO[po]
		rec := acc.record
		if acc.hasSuppliedAmount {
			rec.RemainingBudget = acc.supplied
		} else {
			rec.RemainingBudget = rec.TotalPOValue.Sub(rec.AmountAlreadyInvoiced)
		}
		records = append(records, rec)
	}

	return NewLedger(records...), nil
}

// number reads a numeric cell. Blank and unreadable cells count as zero.
func (l *Loader) number(raw, column string, line int) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, ok := extraction.ParseAmount(raw)
	if !ok {
		l.log.Warn().
			Int("row", line).
			Str("column", column).
			Str("value", raw).
			Msg("Unreadable register amount, using 0")
		return decimal.Zero
	}
	return d
}

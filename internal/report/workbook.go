// Package report renders a reconciled batch as the control workbook.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"invoicecontrol/internal/history"
	"invoicecontrol/pkg/models"
)

// Workbook sheet names.
const (
	SheetInvoiceControl = "Invoice_Control"
	SheetPORegister     = "PO_Register"
	SheetHistory        = "History"
	SheetSummary        = "Summary"
)

// InvoiceControlColumns is the header of the Invoice_Control sheet.
var InvoiceControlColumns = []string{
	"Batch_ID", "Processed_At", "File_Name", "PO_Number", "Invoice_Number", "Invoice_Amount",
	"Status", "Reason", "Remaining_Before", "Remaining_After", "Client_Name", "Project_Name",
}

// PORegisterColumns is the header of the PO_Register sheet.
var PORegisterColumns = []string{
	"PO_Number", "Client_Name", "Project_Name", "Total_PO_Value", "Amount_Already_Invoiced", "Remaining_Budget", "Source_Rows",
}

// Report is everything the workbook shows about one batch.
type Report struct {
	BatchID     string
	ProcessedAt time.Time
	Results     []models.InvoiceResult
	Budgets     []models.POBudgetRecord // Balances after the batch
	History     []models.HistoryRecord  // Merged history including this batch
}

// Totals summarizes the results of a batch.
type Totals struct {
	Documents   int
	ByStatus    map[models.Status]int
	TotalAmount decimal.Decimal // Sum of every extracted amount
	ValidAmount decimal.Decimal // Sum of the VALID amounts
}

// ComputeTotals counts statuses and sums amounts.
func ComputeTotals(results []models.InvoiceResult) Totals {
	t := Totals{
		Documents:   len(results),
		ByStatus:    make(map[models.Status]int, len(models.Statuses)),
		TotalAmount: decimal.Zero,
		ValidAmount: decimal.Zero,
	}
	for _, r := range results {
		t.ByStatus[r.Status]++
		if !r.InvoiceAmount.Valid {
			continue
		}
		t.TotalAmount = t.TotalAmount.Add(r.InvoiceAmount.Decimal)
		if r.Status == models.StatusValid {
			t.ValidAmount = t.ValidAmount.Add(r.InvoiceAmount.Decimal)
		}
	}
	return t
}

// Writer saves report workbooks
type Writer struct {
	log zerolog.Logger
}

// NewWriter creates a report writer
func NewWriter(log zerolog.Logger) *Writer {
	return &Writer{log: log}
}

// Save writes the workbook to path, creating parent directories.
func (w *Writer) Save(path string, r *Report) error {
	const op = "Save"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: failed to create output directory: %w", op, err)
	}

	f, err := Build(r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: failed to save %s: %w", op, path, err)
	}

	w.log.Info().
		Str("path", path).
		Str("batch_id", r.BatchID).
		Int("results", len(r.Results)).
		Msg("Report written")
	return nil
}

// WriteTo streams the workbook to out.
func (w *Writer) WriteTo(out io.Writer, r *Report) error {
	f, err := Build(r)
	if err != nil {
		return fmt.Errorf("WriteTo: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("WriteTo: %w", err)
	}
	return nil
}

type styles struct {
	header int
	amount int
	total  int
	status map[models.Status]int
}

var statusColors = map[models.Status]string{
	models.StatusValid:            "#C6EFCE",
	models.StatusNeedsReview:      "#FFEB9C",
	models.StatusInvalid:          "#FFC7CE",
	models.StatusOverbudget:       "#FFC7CE",
	models.StatusPONotFound:       "#FFEB9C",
	models.StatusDuplicate:        "#D9D9D9",
	models.StatusDuplicateHistory: "#D9D9D9",
	models.StatusError:            "#FFC7CE",
}

func newStyles(f *excelize.File) (*styles, error) {
	var (
		s   = &styles{status: make(map[models.Status]int, len(statusColors))}
		err error
	)

	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	s.amount, err = f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	s.total, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 4,
		Border: []excelize.Border{{Type: "top", Color: "#000000", Style: 1}},
	})
	if err != nil {
		return nil, err
	}

	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, err
		}
		s.status[status] = id
	}
	return s, nil
}

// Build renders r into a new workbook. The caller closes it.
func Build(r *Report) (*excelize.File, error) {
	const op = "Build"

	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: failed to create styles: %w", op, err)
	}

	if err := f.SetSheetName("Sheet1", SheetInvoiceControl); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, name := range []string{SheetPORegister, SheetHistory, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: failed to add sheet %s: %w", op, name, err)
		}
	}

	writers := []func(*excelize.File, *styles, *Report) error{
		writeInvoiceControl,
		writePORegister,
		writeHistory,
		writeSummary,
	}
	for _, write := range writers {
		if err := write(f, st, r); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeInvoiceControl(f *excelize.File, st *styles, r *Report) error {
	sheet := SheetInvoiceControl
	if err := writeHeader(f, st, sheet, InvoiceControlColumns); err != nil {
		return err
	}

	for i, res := range r.Results {
		row := i + 2
		if err := writeRow(f, sheet, row, ResultValues(res)); err != nil {
			return err
		}
		if err := styleRange(f, sheet, 6, row, 6, row, st.amount); err != nil {
			return err
		}
		if err := styleRange(f, sheet, 9, row, 10, row, st.amount); err != nil {
			return err
		}
		if id, ok := st.status[res.Status]; ok {
			if err := styleRange(f, sheet, 7, row, 7, row, id); err != nil {
				return err
			}
		}
	}

	totals := ComputeTotals(r.Results)
	totalRow := len(r.Results) + 2
	if err := writeRow(f, sheet, totalRow, []interface{}{
		"", "", "TOTAL", "", "", totals.TotalAmount.InexactFloat64(),
	}); err != nil {
		return err
	}
	if err := styleRange(f, sheet, 1, totalRow, len(InvoiceControlColumns), totalRow, st.total); err != nil {
		return err
	}

	return setWidths(f, sheet, len(InvoiceControlColumns), map[int]float64{8: 48})
}

func writePORegister(f *excelize.File, st *styles, r *Report) error {
	sheet := SheetPORegister
	if err := writeHeader(f, st, sheet, PORegisterColumns); err != nil {
		return err
	}
	for i, rec := range r.Budgets {
		row := i + 2
		if err := writeRow(f, sheet, row, []interface{}{
			rec.PONumber,
			rec.ClientName,
			rec.ProjectName,
			rec.TotalPOValue.InexactFloat64(),
			rec.AmountAlreadyInvoiced.InexactFloat64(),
			rec.RemainingBudget.InexactFloat64(),
			rec.SourceRows,
		}); err != nil {
			return err
		}
		if err := styleRange(f, sheet, 4, row, 6, row, st.amount); err != nil {
			return err
		}
	}
	return setWidths(f, sheet, len(PORegisterColumns), nil)
}

func writeHistory(f *excelize.File, st *styles, r *Report) error {
	sheet := SheetHistory
	if err := writeHeader(f, st, sheet, history.Columns); err != nil {
		return err
	}
	for i, rec := range r.History {
		row := i + 2
		if err := writeRow(f, sheet, row, []interface{}{
			rec.InvoiceNumber,
			rec.PONumber,
			rec.InvoiceAmount.InexactFloat64(),
			rec.FileName,
			rec.BatchID,
			history.FormatTime(rec.ProcessedAt),
		}); err != nil {
			return err
		}
		if err := styleRange(f, sheet, 3, row, 3, row, st.amount); err != nil {
			return err
		}
	}
	return setWidths(f, sheet, len(history.Columns), nil)
}

func writeSummary(f *excelize.File, st *styles, r *Report) error {
	sheet := SheetSummary
	totals := ComputeTotals(r.Results)

	rows := [][]interface{}{
		{"Batch_ID", r.BatchID},
		{"Processed_At", history.FormatTime(r.ProcessedAt)},
		{"Documents", totals.Documents},
	}
	for _, status := range models.Statuses {
		rows = append(rows, []interface{}{status.String(), totals.ByStatus[status]})
	}
	amountsFrom := len(rows) + 2
	rows = append(rows,
		[]interface{}{"Total_Invoice_Amount", totals.TotalAmount.InexactFloat64()},
		[]interface{}{"Valid_Invoice_Amount", totals.ValidAmount.InexactFloat64()},
	)

	if err := writeHeader(f, st, sheet, []string{"Metric", "Value"}); err != nil {
		return err
	}
	for i, values := range rows {
		if err := writeRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	if err := styleRange(f, sheet, 2, amountsFrom, 2, amountsFrom+1, st.amount); err != nil {
		return err
	}
	return setWidths(f, sheet, 2, nil)
}

func writeHeader(f *excelize.File, st *styles, sheet string, columns []string) error {
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := styleRange(f, sheet, 1, 1, len(columns), 1, st.header); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleRange(f *excelize.File, sheet string, fromCol, fromRow, toCol, toRow, style int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}

// setWidths gives every column a readable default width; wide overrides
// maps 1-based column numbers to widths.
func setWidths(f *excelize.File, sheet string, columns int, wide map[int]float64) error {
	last, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return err
	}
	for col, width := range wide {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

// ResultValues renders one result in InvoiceControlColumns order.
func ResultValues(res models.InvoiceResult) []interface{} {
	return []interface{}{
		res.BatchID,
		history.FormatTime(res.ProcessedAt),
		res.FileName,
		res.PONumber,
		res.InvoiceNumber,
		nullAmount(res.InvoiceAmount),
		res.Status.String(),
		res.Reason,
		nullAmount(res.RemainingBefore),
		nullAmount(res.RemainingAfter),
		res.ClientName,
		res.ProjectName,
	}
}

// nullAmount renders a missing amount as an empty cell.
func nullAmount(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

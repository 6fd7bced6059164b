package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
)

// header is the first row of the ledger tab. Columns are matched by name on
// read, so a reordered sheet still parses.
var header = []string{
	"ID", "Fecha", "Monto", "Moneda", "Descripción", "Pagador", "Tipo",
	"Naturaleza", "Cuenta", "Cuenta destino", "Liquidación", "Cuotas",
}

const (
	colID = iota
	colDate
	colAmount
	colCurrency
	colDescription
	colPayer
	colBeneficiary
	colNature
	colSource
	colDestination
	colSettlement
	colInstallments
)

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// encodeRows renders txs as a values matrix including the header. Amounts
// and dates are written as text so the sheet cannot reformat them.
func encodeRows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs)+1)
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	out = append(out, h)
	for _, tx := range txs {
		settlement := ""
		if tx.IsSettlement {
			settlement = "SI"
		}
		installments := ""
		if tx.Installments > 1 {
			installments = strconv.Itoa(tx.Installments)
		}
		out = append(out, []any{
			tx.ID,
			tx.OccurredAt.Format(time.RFC3339),
			tx.Amount.String(),
			string(tx.Currency),
			tx.Description,
			string(tx.Payer),
			string(tx.Beneficiary),
			string(tx.Nature),
			tx.SourceAccountID,
			tx.DestinationAccountID,
			settlement,
			installments,
		})
	}
	return out
}

// RowError reports a row that could not be decoded. Cells holds the row's
// values in canonical column order so it can be written back unchanged.
type RowError struct {
	Row   int
	Err   error
	Cells []any
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// parseRows decodes a values matrix. Rows that cannot be decoded are skipped
// and reported; blank rows are ignored silently.
func parseRows(values [][]any) ([]core.Transaction, []RowError) {
	if len(values) == 0 {
		return nil, nil
	}
	cols := columnIndex(toStrings(values[0]))
	start := 1
	if cols == nil {
		// No header row: assume the canonical layout.
		cols = make([]int, len(header))
		for i := range cols {
			cols[i] = i
		}
		start = 0
	}

	var (
		out  []core.Transaction
		errs []RowError
	)
	for i := start; i < len(values); i++ {
		row := values[i]
		if blank(row) {
			continue
		}
		tx, err := parseRow(row, cols)
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err, Cells: canonicalCells(row, cols)})
			continue
		}
		out = append(out, tx)
	}
	return out, errs
}

// canonicalCells reorders row into the layout written by encodeRows.
func canonicalCells(row []any, cols []int) []any {
	out := make([]any, len(header))
	for c, idx := range cols {
		if idx >= 0 && idx < len(row) && row[idx] != nil {
			out[c] = row[idx]
		} else {
			out[c] = ""
		}
	}
	return out
}

func parseRow(row []any, cols []int) (core.Transaction, error) {
	get := func(c int) any {
		idx := cols[c]
		if idx < 0 || idx >= len(row) {
			return nil
		}
		return row[idx]
	}
	str := func(c int) string {
		v := get(c)
		if v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}

	var (
		tx  core.Transaction
		err error
	)
	tx.ID = str(colID)
	if tx.ID == "" {
		return tx, core.ErrMissingID
	}
	if tx.Amount, err = parseAmountCell(get(colAmount)); err != nil {
		return tx, err
	}
	if tx.OccurredAt, err = parseDateCell(get(colDate)); err != nil {
		return tx, err
	}
	if tx.Currency, err = core.ParseCurrency(str(colCurrency)); err != nil {
		return tx, err
	}
	tx.Description = str(colDescription)
	tx.Payer = core.Member(str(colPayer))
	tx.Beneficiary = core.Beneficiary(str(colBeneficiary))
	tx.Nature = core.Nature(str(colNature))
	tx.SourceAccountID = str(colSource)
	tx.DestinationAccountID = str(colDestination)
	tx.IsSettlement = truthy(str(colSettlement))
	if s := str(colInstallments); s != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(s, ".0"))
		if err != nil || n < 0 {
			return tx, fmt.Errorf("%w: %q", core.ErrInvalidInstallments, s)
		}
		tx.Installments = n
	}
	tx.Synced = true
	if err := tx.Validate(); err != nil {
		return tx, err
	}
	return tx, nil
}

// parseAmountCell accepts numbers and text with either decimal separator.
func parseAmountCell(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, core.ErrInvalidAmount
		}
		d := decimal.NewFromFloat(x)
		if !d.IsPositive() {
			return decimal.Zero, core.ErrInvalidAmount
		}
		return d, nil
	case nil:
		return decimal.Zero, core.ErrInvalidAmount
	default:
		s := strings.TrimSpace(fmt.Sprint(x))
		s = strings.TrimPrefix(s, "$")
		return core.ParseAmount(strings.TrimSpace(s))
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	time.DateOnly,
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// parseDateCell accepts RFC 3339 text, a few common sheet formats and
// spreadsheet serial numbers.
func parseDateCell(v any) (time.Time, error) {
	switch x := v.(type) {
	case float64:
		if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, core.ErrMissingDate
		}
		return sheetsEpoch.Add(time.Duration(x * float64(24*time.Hour))).Round(time.Second), nil
	case nil:
		return time.Time{}, core.ErrMissingDate
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return time.Time{}, core.ErrMissingDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return parseDateCell(f)
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", core.ErrMissingDate, s)
}

// columnIndex maps canonical columns to positions in a header row. It
// returns nil when the row is not a header.
func columnIndex(headers []string) []int {
	if len(headers) == 0 || !strings.EqualFold(headers[0], header[colID]) {
		if indexOf(headers, header[colID]) < 0 {
			return nil
		}
	}
	cols := make([]int, len(header))
	for i, name := range header {
		cols[i] = indexOf(headers, name)
	}
	return cols
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "si", "sí", "true", "1", "x", "yes":
		return true
	}
	return false
}

func blank(row []any) bool {
	for _, v := range row {
		if v != nil && strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

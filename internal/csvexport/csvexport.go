// Package csvexport serializes canonical transactions to delimited text.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Mode selects the amount layout.
type Mode int

const (
	// ModeSigned writes one Amount column, credit minus debit.
	ModeSigned Mode = iota
	// ModeDebitCredit writes unsigned Debit and Credit columns for
	// QuickBooks-style imports.
	ModeDebitCredit
)

// BOM is the UTF-8 byte order mark some spreadsheet tools need.
const BOM = "\uFEFF"

var (
	signedHeader      = []string{"Date", "Payee", "Description", "Amount", "Balance", "Memo"}
	debitCreditHeader = []string{"Date", "Description", "Payee", "Debit", "Credit", "Balance", "Memo"}
)

// Options controls the output. The zero value is signed, comma-delimited,
// without a BOM.
type Options struct {
	Mode      Mode
	Delimiter rune
	BOM       bool
	// EmptyZero renders zero and missing amounts as empty cells instead of
	// "0.00" in ModeDebitCredit.
	EmptyZero bool
}

// Header returns the header row for mode.
func Header(mode Mode) []string {
	if mode == ModeDebitCredit {
		return append([]string(nil), debitCreditHeader...)
	}
	return append([]string(nil), signedHeader...)
}

// ToCSV formats txs with the default options.
func ToCSV(txs []domain.Transaction) string {
	return Format(txs, Options{})
}

// Format returns txs as delimited text. Lines are separated by "\n" and the
// last line has no terminator. Transactions that are not exportable are
// skipped; an empty input yields the header row alone.
func Format(txs []domain.Transaction, opts Options) string {
	var sb strings.Builder
	if err := Write(&sb, txs, opts); err != nil {
		// Only an invalid delimiter gets here.
		return ""
	}
	return sb.String()
}

// Write writes the Format output to w.
func Write(w io.Writer, txs []domain.Transaction, opts Options) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(Header(opts.Mode)); err != nil {
		return fmt.Errorf("Write: header: %w", err)
	}
	for i, tx := range domain.Exportable(txs) {
		if err := cw.Write(Row(tx, opts)); err != nil {
			return fmt.Errorf("Write: row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("Write: flush: %w", err)
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if opts.BOM {
		if _, err := io.WriteString(w, BOM); err != nil {
			return fmt.Errorf("Write: bom: %w", err)
		}
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

// Row returns the cells of tx in the column order of opts.Mode.
func Row(tx domain.Transaction, opts Options) []string {
	date := FormatDate(tx)
	payee := ""
	if tx.Payee != nil {
		payee = *tx.Payee
	}
	memo := Memo(tx.Metadata, Header(opts.Mode))

	if opts.Mode == ModeDebitCredit {
		return []string{
			date,
			tx.Description,
			payee,
			unsigned(&tx.Debit, opts.EmptyZero),
			unsigned(&tx.Credit, opts.EmptyZero),
			unsigned(tx.Balance, opts.EmptyZero),
			memo,
		}
	}

	amount := tx.Credit - tx.Debit
	return []string{
		date,
		payee,
		tx.Description,
		signed(&amount),
		signed(tx.Balance),
		memo,
	}
}

// FormatDate renders the effective date as MM/DD/YYYY, or "" when absent.
func FormatDate(tx domain.Transaction) string {
	d := tx.EffectiveDate()
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
}

// FormatAmount renders f with exactly two fractional digits. ok is false for
// non-finite values.
func FormatAmount(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return decimal.NewFromFloat(f).StringFixed(2), true
}

func signed(f *float64) string {
	if f == nil {
		return ""
	}
	s, _ := FormatAmount(*f)
	return s
}

func unsigned(f *float64, emptyZero bool) string {
	if f == nil {
		if emptyZero {
			return ""
		}
		return "0.00"
	}
	s, ok := FormatAmount(*f)
	if !ok || s == "0.00" {
		if emptyZero {
			return ""
		}
		return "0.00"
	}
	return s
}

// Memo serializes metadata as compact JSON. Extra keys that collide with a
// column name are left out. Empty metadata and values that cannot be
// marshalled yield "".
func Memo(m domain.Metadata, columns []string) string {
	flat := m.Flatten()
	for _, c := range columns {
		for k := range m.Extra {
			if strings.EqualFold(k, c) {
				delete(flat, k)
			}
		}
	}
	if len(flat) == 0 {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(flat); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

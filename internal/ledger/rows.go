package ledger

import (
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/csvexport"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

var headerRow = []string{"Date", "Description", "Payee", "Debit", "Credit", "Balance", "Account", "Bank"}

// HeaderRow returns the column titles of a ledger tab.
func HeaderRow() []any {
	out := make([]any, len(headerRow))
	for i, h := range headerRow {
		out[i] = h
	}
	return out
}

// RowValues returns the ledger cells of tx in HeaderRow order. Amounts are
// rendered with two fractional digits; zero debit or credit cells are empty.
func RowValues(tx domain.Transaction) []any {
	return []any{
		csvexport.FormatDate(tx),
		tx.Description,
		deref(tx.Payee),
		amountCell(tx.Debit),
		amountCell(tx.Credit),
		balanceCell(tx.Balance),
		deref(tx.AccountID),
		deref(tx.SourceBank),
	}
}

func transactionRows(txs []domain.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, RowValues(tx))
	}
	return rows
}

func hashRows(hashes []dedup.Hash) [][]any {
	rows := make([][]any, 0, len(hashes))
	for _, h := range hashes {
		rows = append(rows, []any{string(h)})
	}
	return rows
}

// cellStrings flattens the first column of a values response.
func cellStrings(values [][]any) []string {
	out := make([]string, 0, len(values))
	for _, row := range values {
		if len(row) == 0 || row[0] == nil {
			out = append(out, "")
			continue
		}
		out = append(out, fmt.Sprint(row[0]))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountCell(f float64) string {
	if f == 0 {
		return ""
	}
	s, _ := csvexport.FormatAmount(f)
	return s
}

func balanceCell(f *float64) string {
	if f == nil {
		return ""
	}
	s, _ := csvexport.FormatAmount(*f)
	return s
}

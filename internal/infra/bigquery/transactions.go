package bigquery

import (
	"encoding/json"
	"math"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// TransactionRow is one archived canonical transaction.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED, dedup hash
	RunID         string `bigquery:"run_id"`         // REQUIRED
	SourceURI     string `bigquery:"source_uri"`     // NULLABLE

	AccountID       bigquery.NullString `bigquery:"account_id"`
	SourceBank      bigquery.NullString `bigquery:"source_bank"`
	StatementStart  bigquery.NullDate   `bigquery:"statement_start"`
	StatementEnd    bigquery.NullDate   `bigquery:"statement_end"`
	TransactionDate bigquery.NullDate   `bigquery:"transaction_date"`
	PostingDate     bigquery.NullDate   `bigquery:"posting_date"`

	Description string              `bigquery:"description"` // REQUIRED
	Payee       bigquery.NullString `bigquery:"payee"`

	Debit  *big.Rat `bigquery:"debit"`  // REQUIRED NUMERIC
	Credit *big.Rat `bigquery:"credit"` // REQUIRED NUMERIC
	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, credit - debit

	Balance       bigquery.NullFloat64 `bigquery:"balance"`
	EndingBalance bigquery.NullFloat64 `bigquery:"ending_balance"`
	Confidence    bigquery.NullFloat64 `bigquery:"confidence"`

	CreatedTS time.Time         `bigquery:"created_ts"` // REQUIRED
	Metadata  bigquery.NullJSON `bigquery:"metadata"`   // NULLABLE JSON
}

// NewTransactionRow maps a canonical transaction onto the archive schema.
func NewTransactionRow(tx domain.Transaction, runID, sourceURI string, created time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID: string(dedup.HashTransaction(tx)),
		RunID:         runID,
		SourceURI:     sourceURI,
		Description:   tx.Description,
		Debit:         money(tx.Debit),
		Credit:        money(tx.Credit),
		Amount:        money(tx.Credit - tx.Debit),
		CreatedTS:     created,
	}

	row.AccountID = nullString(tx.AccountID)
	row.SourceBank = nullString(tx.SourceBank)
	row.Payee = nullString(tx.Payee)
	if tx.Date != nil {
		row.TransactionDate = bigquery.NullDate{Date: *tx.Date, Valid: true}
	}
	if tx.PostedDate != nil {
		row.PostingDate = bigquery.NullDate{Date: *tx.PostedDate, Valid: true}
	}
	if p := tx.StatementPeriod; p != nil {
		row.StatementStart = bigquery.NullDate{Date: p.Start, Valid: true}
		row.StatementEnd = bigquery.NullDate{Date: p.End, Valid: true}
	}
	row.Balance = nullFloat(tx.Balance)
	row.EndingBalance = nullFloat(tx.EndingBalance)
	row.Confidence = nullFloat(tx.Metadata.Confidence)

	if !tx.Metadata.IsZero() {
		if b, err := json.Marshal(tx.Metadata); err == nil {
			row.Metadata = bigquery.NullJSON{JSONVal: string(b), Valid: true}
		}
	}
	return row
}

// money rounds to cents. Non-finite values archive as zero.
func money(f float64) *big.Rat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return decimal.NewFromFloat(f).Round(2).Rat()
}

func nullString(s *string) bigquery.NullString {
	if s == nil || *s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func nullFloat(f *float64) bigquery.NullFloat64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *f, Valid: true}
}

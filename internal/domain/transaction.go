package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DescriptionPlaceholder is used when a source row carries no usable text.
const DescriptionPlaceholder = "(no description)"

// ErrInvalidTransaction is returned by Validate for records that break the
// canonical invariants.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Period is a statement period, both ends inclusive.
type Period struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Transaction is the canonical transaction every normalizer converges on.
// Insertion order inside a source document is the statement's chronological
// order; nothing downstream reorders a slice of these.
type Transaction struct {
	Date       *civil.Date // effective date, nil when the source had none
	PostedDate *civil.Date // bank posting date, fallback identity key

	Description string  // raw text, never empty (see NewTransaction)
	Payee       *string // cleaned counterparty, derived from Description when absent

	Debit  float64 // >= 0
	Credit float64 // >= 0

	Balance       *float64 // running balance after this transaction
	EndingBalance *float64 // only on the statement's closing record

	AccountID       *string
	SourceBank      *string
	StatementPeriod *Period

	Metadata Metadata
}

// NewTransaction returns a transaction whose description is guaranteed to be
// non-empty. Blank input falls back to the placeholder and marks the
// description as inferred.
func NewTransaction(description string) Transaction {
	tx := Transaction{Description: strings.TrimSpace(description)}
	if tx.Description == "" {
		tx.Description = DescriptionPlaceholder
		tx.Metadata.InferredDescription = true
	}
	return tx
}

// IsExportable reports whether tx may be written to any export target.
func IsExportable(tx Transaction) bool {
	if strings.TrimSpace(tx.Description) == "" {
		return false
	}
	return tx.Date != nil || tx.PostedDate != nil
}

// Exportable returns the exportable subset of txs, preserving order.
func Exportable(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if IsExportable(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// EffectiveDate returns Date, falling back to PostedDate.
func (t Transaction) EffectiveDate() *civil.Date {
	if t.Date != nil {
		return t.Date
	}
	return t.PostedDate
}

// SignedAmount is credit when the transaction is a credit and -debit otherwise.
func (t Transaction) SignedAmount() float64 {
	if t.Credit > 0 {
		return t.Credit
	}
	return -t.Debit
}

// IsDebit reports whether the transaction moves money out of the account.
func (t Transaction) IsDebit() bool {
	return t.Debit > 0
}

// IsCredit reports whether the transaction moves money into the account.
func (t Transaction) IsCredit() bool {
	return t.Credit > 0
}

// PayeeOrDescription returns the cleaned payee when present.
func (t Transaction) PayeeOrDescription() string {
	if t.Payee != nil && *t.Payee != "" {
		return *t.Payee
	}
	return t.Description
}

// Validate checks the canonical invariants.
func (t Transaction) Validate() error {
	if math.IsNaN(t.Debit) || math.IsInf(t.Debit, 0) || t.Debit < 0 {
		return fmt.Errorf("%w: debit %v must be a finite non-negative number", ErrInvalidTransaction, t.Debit)
	}
	if math.IsNaN(t.Credit) || math.IsInf(t.Credit, 0) || t.Credit < 0 {
		return fmt.Errorf("%w: credit %v must be a finite non-negative number", ErrInvalidTransaction, t.Credit)
	}
	if t.Debit > 0 && t.Credit > 0 {
		return fmt.Errorf("%w: both debit (%.2f) and credit (%.2f) are set", ErrInvalidTransaction, t.Debit, t.Credit)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidTransaction)
	}
	if t.Date == nil && t.PostedDate == nil {
		return fmt.Errorf("%w: neither date nor posted date is set", ErrInvalidTransaction)
	}
	return nil
}

// SetSignedAmount assigns a signed amount to the debit or credit side.
// Negative amounts become debits, positive amounts credits, zero clears both.
func (t *Transaction) SetSignedAmount(amount float64) {
	t.Debit, t.Credit = 0, 0
	switch {
	case amount < 0:
		t.Debit = -amount
	case amount > 0:
		t.Credit = amount
	}
}

// Edit holds the fields a user may change on a normalized transaction.
// Nil fields are left untouched.
type Edit struct {
	Date        *civil.Date
	Description *string
	Payee       *string
	Amount      *float64 // signed, see SetSignedAmount
}

// ApplyEdit is the only mutation path after normalization. It returns an
// edited copy stamped with Metadata.Edited and Metadata.EditedAt.
func (t Transaction) ApplyEdit(e Edit, now time.Time) Transaction {
	out := t.Clone()
	if e.Date != nil {
		d := *e.Date
		out.Date = &d
	}
	if e.Description != nil {
		desc := strings.TrimSpace(*e.Description)
		if desc == "" {
			desc = DescriptionPlaceholder
		}
		out.Description = desc
		out.Metadata.InferredDescription = desc == DescriptionPlaceholder
	}
	if e.Payee != nil {
		p := strings.TrimSpace(*e.Payee)
		out.Payee = &p
	}
	if e.Amount != nil {
		out.SetSignedAmount(*e.Amount)
	}
	out.Metadata.Edited = true
	ts := now.UTC()
	out.Metadata.EditedAt = &ts
	return out
}

// Clone returns a deep copy so callers can hand transactions to other
// components without sharing pointers.
func (t Transaction) Clone() Transaction {
	out := t
	out.Date = cloneDate(t.Date)
	out.PostedDate = cloneDate(t.PostedDate)
	out.Payee = cloneString(t.Payee)
	out.Balance = cloneFloat(t.Balance)
	out.EndingBalance = cloneFloat(t.EndingBalance)
	out.AccountID = cloneString(t.AccountID)
	out.SourceBank = cloneString(t.SourceBank)
	if t.StatementPeriod != nil {
		p := *t.StatementPeriod
		out.StatementPeriod = &p
	}
	out.Metadata = t.Metadata.Clone()
	return out
}

func cloneDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// StringPtr returns a pointer to s, or nil for a blank string.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}

// DatePtr returns a pointer to d.
func DatePtr(d civil.Date) *civil.Date {
	return &d
}

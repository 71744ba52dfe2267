package entities

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// MetaDocumentType is the metadata key recording the declared document type.
const MetaDocumentType = "documentType"

// Stats describes one normalization run.
type Stats struct {
	Rows    int // logical rows found
	Kept    int
	Dropped int // rows with neither a date nor an amount
}

// Normalizer converts entity documents. Now supplies the year for dates
// printed without one.
type Normalizer struct {
	Now func() time.Time
}

// Normalize converts doc using the current time.
func Normalize(doc Document) []domain.Transaction {
	txs, _ := Normalizer{}.NormalizeWithStats(doc)
	return txs
}

// NormalizeWithStats converts doc using the current time and reports counts.
func NormalizeWithStats(doc Document) ([]domain.Transaction, Stats) {
	return Normalizer{}.NormalizeWithStats(doc)
}

// Normalize converts doc into canonical transactions in document order.
func (n Normalizer) Normalize(doc Document) []domain.Transaction {
	txs, _ := n.NormalizeWithStats(doc)
	return txs
}

// NormalizeWithStats converts doc and reports how many rows were dropped.
func (n Normalizer) NormalizeWithStats(doc Document) ([]domain.Transaction, Stats) {
	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}

	prov := statementProvenance(doc.Entities, now)
	rows := groupRows(doc.Entities)

	stats := Stats{Rows: len(rows)}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, ok := resolveRow(r, now)
		if !ok {
			stats.Dropped++
			continue
		}
		prov.apply(&tx)
		if doc.DocumentType != "" {
			_ = tx.Metadata.SetExtra(MetaDocumentType, doc.DocumentType)
		}
		out = append(out, tx)
	}
	if prov.endingBalance != nil && len(out) > 0 {
		last := &out[len(out)-1]
		last.EndingBalance = domain.FloatPtr(*prov.endingBalance)
		last.Metadata.EndingBalance = domain.FloatPtr(*prov.endingBalance)
	}
	stats.Kept = len(out)
	return out, stats
}

type provenance struct {
	accountID     string
	bank          string
	period        *domain.Period
	endingBalance *float64
}

// statementProvenance reads the statement-level spans. The first span of
// each kind wins.
func statementProvenance(ents []Entity, now time.Time) provenance {
	var p provenance
	var start, end *civil.Date
	for _, e := range ents {
		if len(e.Properties) > 0 {
			continue
		}
		text := strings.TrimSpace(e.MentionText)
		switch classifyStatement(e.Type) {
		case stmtAccount:
			if p.accountID == "" {
				p.accountID = text
			}
		case stmtBank:
			if p.bank == "" {
				p.bank = text
			}
		case stmtPeriodStart:
			if d, ok := domain.ParseDate(text, now); ok && start == nil {
				start = &d
			}
		case stmtPeriodEnd:
			if d, ok := domain.ParseDate(text, now); ok && end == nil {
				end = &d
			}
		case stmtEndingBalance:
			if amt, err := domain.ParseAmount(text); err == nil && p.endingBalance == nil {
				f := amt.InexactFloat64()
				p.endingBalance = &f
			}
		}
	}
	if start != nil && end != nil {
		p.period = &domain.Period{Start: *start, End: *end}
	}
	return p
}

func (p provenance) apply(tx *domain.Transaction) {
	if p.accountID != "" {
		tx.AccountID = domain.StringPtr(p.accountID)
	}
	if p.bank != "" {
		tx.SourceBank = domain.StringPtr(p.bank)
	}
	if p.period != nil {
		period := *p.period
		tx.StatementPeriod = &period
	}
}

// groupRows splits the document into logical rows. An entity with
// properties is a row by itself. Flat row-level spans are grouped in order:
// a second date, amount, description or payee starts the next row, and so
// does a description or payee following a row that has both a date and an
// amount.
func groupRows(ents []Entity) [][]Entity {
	var rows [][]Entity
	var cur []Entity
	var hasDate, hasAmount, hasDescription, hasPayee bool

	flush := func() {
		if len(cur) > 0 {
			rows = append(rows, cur)
		}
		cur = nil
		hasDate, hasAmount, hasDescription, hasPayee = false, false, false, false
	}

	for _, e := range ents {
		if len(e.Properties) > 0 {
			flush()
			rows = append(rows, e.Properties)
			continue
		}
		if classifyStatement(e.Type) != stmtNone {
			continue
		}
		f := classify(e.Type)
		complete := hasDate && hasAmount
		switch {
		case f == fieldUnknown:
			continue
		case f == fieldDate:
			if hasDate {
				flush()
			}
			hasDate = true
		case f.isAmount():
			if hasAmount {
				flush()
			}
			hasAmount = true
		case f == fieldDescription:
			if hasDescription || complete {
				flush()
			}
			hasDescription = true
		case f == fieldPayee:
			if hasPayee || complete {
				flush()
			}
			hasPayee = true
		}
		cur = append(cur, e)
	}
	flush()
	return rows
}

// resolveRow builds one transaction from a row's spans. The first
// resolvable span of each field wins; every recognized span still lowers
// the row confidence.
func resolveRow(spans []Entity, now time.Time) (domain.Transaction, bool) {
	var (
		date, posted       *civil.Date
		amount             *decimal.Decimal
		amountSide         side
		explicitSide       side
		payee, description string
		balance            *float64
		confidence         float64
		sawConfidence      bool
	)

	for _, s := range spans {
		f := classify(s.Type)
		if f == fieldUnknown {
			continue
		}
		if !sawConfidence || s.Confidence < confidence {
			confidence = s.Confidence
			sawConfidence = true
		}

		text := strings.TrimSpace(s.MentionText)
		switch f {
		case fieldDate:
			if d, ok := domain.ParseDate(text, now); ok && date == nil {
				date = &d
			}
		case fieldPostedDate:
			if d, ok := domain.ParseDate(text, now); ok && posted == nil {
				posted = &d
			}
		case fieldAmount, fieldDeposit, fieldWithdrawal:
			if amount != nil {
				continue
			}
			if v, err := domain.ParseAmount(text); err == nil {
				amount = &v
				switch f {
				case fieldDeposit:
					amountSide = sideCredit
				case fieldWithdrawal:
					amountSide = sideDebit
				}
			}
		case fieldDebitCredit:
			if explicitSide == sideUnknown {
				explicitSide = parseSide(text)
			}
		case fieldPayee:
			if payee == "" {
				payee = text
			}
		case fieldDescription:
			if description == "" {
				description = text
			}
		case fieldBalance:
			if v, err := domain.ParseAmount(text); err == nil && balance == nil {
				bal := v.InexactFloat64()
				balance = &bal
			}
		}
	}

	if date == nil && posted == nil && amount == nil {
		return domain.Transaction{}, false
	}

	if description == "" {
		description = payee
	}
	tx := domain.NewTransaction(description)
	tx.Date = date
	tx.PostedDate = posted
	tx.Balance = balance

	switch {
	case payee != "":
		tx.Payee = domain.StringPtr(payee)
	case !tx.Metadata.InferredDescription:
		if p := domain.CleanPayee(tx.Description); p != "" {
			tx.Payee = domain.StringPtr(p)
		}
	}

	if amount != nil {
		s := explicitSide
		if s == sideUnknown {
			s = amountSide
		}
		abs := amount.Abs().InexactFloat64()
		switch s {
		case sideDebit:
			tx.SetSignedAmount(-abs)
		case sideCredit:
			tx.SetSignedAmount(abs)
		default:
			tx.SetSignedAmount(amount.InexactFloat64())
		}
	}

	if sawConfidence {
		tx.Metadata.Confidence = domain.FloatPtr(confidence)
	}
	return tx, true
}

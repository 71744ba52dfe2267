package statementtext

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

var (
	// "Account Number: XXXXXX1234", "Account # 000123456"
	accountPattern = regexp.MustCompile(`(?i)account\s+(?:number|no\.?|#)[:\s#]*([0-9Xx*][0-9Xx*\-]{3,})`)

	// "Statement Period: 01/01/2024 - 01/31/2024", "Statement Period: Nov 01, 2024 to Nov 30, 2024"
	periodPattern = regexp.MustCompile(`(?i)statement\s+period[:\s]+(.+?)\s+(?:-|–|to|through)\s+(.+?)\s*$`)

	beginningBalancePattern = regexp.MustCompile(`(?i)(?:beginning|opening|previous)\s+balance[^\d(\-$]*(\(?-?\$?[\d,]+\.\d{2}\)?)`)
	endingBalancePattern    = regexp.MustCompile(`(?i)(?:ending|closing|new)\s+balance[^\d(\-$]*(\(?-?\$?[\d,]+\.\d{2}\)?)`)
)

// parseHeader extracts the statement-level fields. Only the first match of
// each pattern is used; summary pages usually repeat them.
func (p *Parser) parseHeader(text string, now time.Time) *Statement {
	stmt := &Statement{SourceBank: p.bank}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if stmt.AccountID == "" {
			if m := accountPattern.FindStringSubmatch(line); m != nil {
				stmt.AccountID = m[1]
			}
		}
		if stmt.Period == nil {
			if m := periodPattern.FindStringSubmatch(line); m != nil {
				start, okStart := domain.ParseDate(m[1], now)
				end, okEnd := domain.ParseDate(m[2], now)
				if okStart && okEnd {
					stmt.Period = &domain.Period{Start: start, End: end}
				}
			}
		}
		if stmt.BeginningBalance == nil {
			stmt.BeginningBalance = matchBalance(beginningBalancePattern, line)
		}
		if stmt.EndingBalance == nil {
			stmt.EndingBalance = matchBalance(endingBalancePattern, line)
		}
	}
	return stmt
}

func matchBalance(re *regexp.Regexp, line string) *decimal.Decimal {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	d, err := domain.ParseAmount(m[1])
	if err != nil {
		return nil
	}
	return &d
}

// Transactions converts the records into canonical transactions. Every
// record carries the statement provenance; the ending balance goes on the
// last record only.
func (s *Statement) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, 0, len(s.Records))
	for _, rec := range s.Records {
		tx := domain.NewTransaction(rec.Description)
		date := rec.Date
		tx.Date = &date
		tx.Payee = domain.StringPtr(rec.Payee)

		amount, err := decimal.NewFromString(rec.Amount)
		if err == nil {
			f, _ := amount.Float64()
			tx.SetSignedAmount(f)
		}
		if rec.Balance != "" {
			if bal, err := decimal.NewFromString(rec.Balance); err == nil {
				f, _ := bal.Float64()
				tx.Balance = &f
			}
		}

		tx.AccountID = domain.StringPtr(s.AccountID)
		tx.SourceBank = domain.StringPtr(s.SourceBank)
		if s.Period != nil {
			period := *s.Period
			tx.StatementPeriod = &period
		}
		out = append(out, tx)
	}

	if s.EndingBalance != nil && len(out) > 0 {
		f, _ := s.EndingBalance.Float64()
		last := &out[len(out)-1]
		last.EndingBalance = domain.FloatPtr(f)
		last.Metadata.EndingBalance = domain.FloatPtr(f)
	}
	return out
}

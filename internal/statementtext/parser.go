// Package statementtext turns the plain text of a bank statement into
// canonical transactions using a single-pass section scanner.
package statementtext

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Record is one transaction line recognised by the scanner.
type Record struct {
	Date        civil.Date
	Section     Section
	Type        string
	Description string
	Payee       string
	Amount      string // signed, two fractional digits: "1200.00", "-45.22"
	Balance     string // running balance when the layout has one
	Line        int    // 1-based line number in the input
}

// Statement is the parse result including header provenance.
type Statement struct {
	AccountID        string
	SourceBank       string
	Period           *domain.Period
	BeginningBalance *decimal.Decimal
	EndingBalance    *decimal.Decimal
	Records          []Record
}

// Options configures a Parser. Zero values fall back to the defaults.
type Options struct {
	Now        func() time.Time
	Headers    []HeaderRule
	Shapes     []LineShape
	Types      []TypeRule
	SourceBank string
}

// Parser scans statement text. It is safe for concurrent use.
type Parser struct {
	now     func() time.Time
	headers []HeaderRule
	shapes  []LineShape
	types   []typeMatcher
	bank    string
}

// New builds a Parser from opts.
func New(opts Options) *Parser {
	p := &Parser{
		now:     opts.Now,
		headers: opts.Headers,
		shapes:  opts.Shapes,
		bank:    strings.TrimSpace(opts.SourceBank),
	}
	if p.now == nil {
		p.now = time.Now
	}
	if len(p.headers) == 0 {
		p.headers = DefaultHeaders
	}
	if len(p.shapes) == 0 {
		p.shapes = DefaultShapes
	}
	types := opts.Types
	if len(types) == 0 {
		types = DefaultTypes
	}
	p.types = compileTypes(types)
	return p
}

// Parse scans text with the default configuration.
func Parse(text string) []Record {
	return New(Options{}).Parse(text)
}

// ParseTransactions scans text with the default configuration and returns
// canonical transactions.
func ParseTransactions(text string) []domain.Transaction {
	return New(Options{}).ParseTransactions(text)
}

var leadingDatePattern = regexp.MustCompile(`^` + datePattern + `\b`)

// Parse returns the transaction records found in text, in input order.
// Lines matching no shape are skipped.
func (p *Parser) Parse(text string) []Record {
	return p.ParseStatement(text).Records
}

// ParseStatement returns the records together with the statement header
// fields found anywhere in text.
func (p *Parser) ParseStatement(text string) *Statement {
	now := p.now()
	stmt := p.parseHeader(text, now)

	section := SectionNone

scan:
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if !leadingDatePattern.MatchString(line) {
			if rule, ok := p.matchHeader(line); ok {
				if rule.EndsRegion {
					break scan
				}
				section = rule.Section
				continue
			}
		}

		if rec, ok := p.matchLine(line, section, now); ok {
			rec.Line = lineNo
			stmt.Records = append(stmt.Records, rec)
		}
	}
	return stmt
}

// ParseTransactions converts the records of text into canonical
// transactions carrying the statement provenance. The ending balance, when
// the header has one, is attached to the last record only.
func (p *Parser) ParseTransactions(text string) []domain.Transaction {
	return p.ParseStatement(text).Transactions()
}

func (p *Parser) matchHeader(line string) (HeaderRule, bool) {
	lower := strings.ToLower(line)
	for _, rule := range p.headers {
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule, true
		}
	}
	return HeaderRule{}, false
}

func (p *Parser) matchLine(line string, section Section, now time.Time) (Record, bool) {
	for _, shape := range p.shapes {
		dual := shape.dualColumn()
		if !dual && section == SectionNone {
			continue
		}
		m := shape.Pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		group := func(name string) string {
			if i := shape.Pattern.SubexpIndex(name); i >= 0 {
				return strings.TrimSpace(m[i])
			}
			return ""
		}

		date, ok := domain.ParseDate(group("date"), now)
		if !ok {
			continue
		}

		var amount decimal.Decimal
		if dual {
			amount, ok = resolveDualColumn(group("debit"), group("credit"))
		} else {
			amount, ok = resolveSingle(group("amount"), section)
		}
		if !ok {
			continue
		}

		desc := strings.Join(strings.Fields(group("desc")), " ")
		if desc == "" {
			continue
		}

		side := CreditSide
		if amount.IsNegative() {
			side = DebitSide
		}
		rec := Record{
			Date:        date,
			Section:     section,
			Type:        labelFor(p.types, desc, side),
			Description: desc,
			Payee:       domain.CleanPayee(desc),
			Amount:      amount.StringFixed(2),
		}
		if b := group("balance"); b != "" {
			if bal, err := domain.ParseAmount(b); err == nil {
				rec.Balance = bal.StringFixed(2)
			}
		}
		return rec, true
	}
	return Record{}, false
}

func isDash(s string) bool {
	switch s {
	case "-", "–", "—":
		return true
	}
	return false
}

// resolveDualColumn returns the signed amount of a debit/credit column pair.
// Exactly one column must be populated.
func resolveDualColumn(debit, credit string) (decimal.Decimal, bool) {
	debitAbsent, creditAbsent := isDash(debit), isDash(credit)
	if debitAbsent == creditAbsent {
		return decimal.Zero, false
	}
	if creditAbsent {
		d, err := domain.ParseAmount(debit)
		if err != nil {
			return decimal.Zero, false
		}
		return d.Abs().Neg(), true
	}
	c, err := domain.ParseAmount(credit)
	if err != nil {
		return decimal.Zero, false
	}
	return c.Abs(), true
}

// resolveSingle applies the section sign convention to a single amount. A
// negative or parenthesized amount is a debit in every section.
func resolveSingle(text string, section Section) (decimal.Decimal, bool) {
	d, err := domain.ParseAmount(text)
	if err != nil {
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return d, true
	}
	switch section {
	case SectionDebits:
		return d.Neg(), true
	case SectionCredits, SectionOther:
		return d, true
	}
	return decimal.Zero, false
}

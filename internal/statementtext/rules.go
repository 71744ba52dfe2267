package statementtext

import (
	"regexp"
	"strings"
)

// Section is the scanner state: which part of the statement the current
// line belongs to.
type Section int

const (
	SectionNone Section = iota
	SectionCredits
	SectionDebits
	SectionOther
)

func (s Section) String() string {
	switch s {
	case SectionCredits:
		return "credits"
	case SectionDebits:
		return "debits"
	case SectionOther:
		return "other"
	default:
		return "none"
	}
}

// HeaderRule switches the scanner to Section when a non-transaction line
// contains Keyword (case-insensitive). EndsRegion stops the scan entirely.
type HeaderRule struct {
	Keyword    string
	Section    Section
	EndsRegion bool
}

// DefaultHeaders covers the layouts seen so far. Order matters: the first
// matching keyword wins, so compound headers come before their parts.
var DefaultHeaders = []HeaderRule{
	{Keyword: "daily balance", Section: SectionNone, EndsRegion: true},
	{Keyword: "deposits & credits", Section: SectionCredits},
	{Keyword: "deposits and credits", Section: SectionCredits},
	{Keyword: "deposits & additions", Section: SectionCredits},
	{Keyword: "other credits", Section: SectionCredits},
	{Keyword: "electronic deposits", Section: SectionCredits},
	{Keyword: "atm/purchases", Section: SectionDebits},
	{Keyword: "atm & debit card", Section: SectionDebits},
	{Keyword: "checks paid", Section: SectionDebits},
	{Keyword: "electronic payments", Section: SectionDebits},
	{Keyword: "withdrawals", Section: SectionDebits},
	{Keyword: "subtractions", Section: SectionDebits},
	{Keyword: "service charges", Section: SectionDebits},
	{Keyword: "fees", Section: SectionDebits},
	{Keyword: "debits", Section: SectionDebits},
	{Keyword: "debit", Section: SectionDebits},
	{Keyword: "deposits", Section: SectionCredits},
	{Keyword: "credits", Section: SectionCredits},
	{Keyword: "additions", Section: SectionCredits},
	{Keyword: "other transactions", Section: SectionOther},
}

const (
	datePattern   = `\d{1,2}/\d{1,2}(?:/\d{4}|/\d{2})?`
	amountPattern = `\(?-?\$?\d[\d,]*\.\d{2}\)?`
	dashPattern   = `[-–—]`
)

// LineShape is one recognised transaction line layout. Patterns use the
// named groups date, desc, amount, balance, debit and credit. Shapes with
// debit and credit groups carry their own sign and are accepted outside any
// section; the others need a section to decide the side.
type LineShape struct {
	Name    string
	Pattern *regexp.Regexp
}

func (s LineShape) dualColumn() bool {
	return s.Pattern.SubexpIndex("debit") >= 0 && s.Pattern.SubexpIndex("credit") >= 0
}

// DefaultShapes lists the line layouts in the order they are tried.
var DefaultShapes = []LineShape{
	{
		Name: "dual-column",
		Pattern: regexp.MustCompile(`^(?P<date>` + datePattern + `)\s+(?P<desc>\S.*?)\s+` +
			`(?P<debit>` + amountPattern + `|` + dashPattern + `)\s+` +
			`(?P<credit>` + amountPattern + `|` + dashPattern + `)$`),
	},
	{
		Name:    "leading-amount",
		Pattern: regexp.MustCompile(`^(?P<date>` + datePattern + `)\s+(?P<amount>` + amountPattern + `)\s+(?P<desc>\S.*)$`),
	},
	{
		Name: "amount-balance",
		Pattern: regexp.MustCompile(`^(?P<date>` + datePattern + `)\s+(?P<desc>\S.*?)\s+` +
			`(?P<amount>` + amountPattern + `)\s+(?P<balance>` + amountPattern + `)$`),
	},
	{
		Name:    "trailing-amount",
		Pattern: regexp.MustCompile(`^(?P<date>` + datePattern + `)\s+(?P<desc>\S.*?)\s+(?P<amount>` + amountPattern + `)$`),
	},
}

// Side restricts a TypeRule to debits or credits.
type Side int

const (
	AnySide Side = iota
	DebitSide
	CreditSide
)

// TypeRule labels a record whose description contains any of Keywords as a
// whole word.
type TypeRule struct {
	Side     Side
	Keywords []string
	Label    string
}

// DefaultTypes is the fixed transaction type vocabulary.
var DefaultTypes = []TypeRule{
	{Side: AnySide, Keywords: []string{"MOBILE DEPOSIT"}, Label: "Mobile Deposit"},
	{Side: DebitSide, Keywords: []string{"POS", "DEBIT CARD", "CHECKCARD", "CHECK CARD"}, Label: "Debit Card Purchase"},
	{Side: DebitSide, Keywords: []string{"ATM"}, Label: "ATM Withdrawal"},
	{Side: DebitSide, Keywords: []string{"CHECK"}, Label: "Check"},
	{Side: AnySide, Keywords: []string{"TRANSFER", "XFER"}, Label: "Transfer"},
	{Side: CreditSide, Keywords: []string{"ACH"}, Label: "ACH Credit"},
	{Side: DebitSide, Keywords: []string{"ACH"}, Label: "ACH Debit"},
	{Side: CreditSide, Keywords: []string{"INTEREST"}, Label: "Interest"},
	{Side: DebitSide, Keywords: []string{"FEE", "SERVICE CHARGE"}, Label: "Fee"},
	{Side: CreditSide, Keywords: []string{"REFUND"}, Label: "Refund"},
	{Side: CreditSide, Keywords: []string{"DEPOSIT"}, Label: "Deposit"},
}

type typeMatcher struct {
	side     Side
	label    string
	patterns []*regexp.Regexp
}

func compileTypes(rules []TypeRule) []typeMatcher {
	out := make([]typeMatcher, 0, len(rules))
	for _, r := range rules {
		m := typeMatcher{side: r.Side, label: r.Label}
		for _, kw := range r.Keywords {
			m.patterns = append(m.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToUpper(kw))+`\b`))
		}
		out = append(out, m)
	}
	return out
}

func labelFor(matchers []typeMatcher, description string, side Side) string {
	upper := strings.ToUpper(description)
	for _, m := range matchers {
		if m.side != AnySide && m.side != side {
			continue
		}
		for _, p := range m.patterns {
			if p.MatchString(upper) {
				return m.label
			}
		}
	}
	if side == DebitSide {
		return "Debit"
	}
	return "Credit"
}

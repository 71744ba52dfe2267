package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?$`)
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
)

// Textual layouts tried in order. time.Parse matches month names
// case-insensitively.
var textualDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan. 2, 2006",
}

// ParseDate parses the date formats seen on statements and in extraction
// output: M/D/YYYY, M/D/YY (expanded as 20YY), bare M/D (completed with the
// year of now), YYYY-MM-DD and textual months. A bare M/D never rolls over a
// year boundary.
func ParseDate(text string, now time.Time) (civil.Date, bool) {
	s := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ".,;"))
	if s == "" {
		return civil.Date{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	if m := slashDatePattern.FindStringSubmatch(s); m != nil {
		year := strconv.Itoa(now.Year())
		switch len(m[3]) {
		case 2:
			year = "20" + m[3]
		case 4:
			year = m[3]
		}
		return buildDate(year, m[1], m[2])
	}

	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range textualDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func buildDate(year, month, day string) (civil.Date, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return civil.Date{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return civil.Date{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return civil.Date{}, false
	}
	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}

// ParseAmount parses a monetary string such as "1,200.00", "$45.22",
// "(45.22)", "-45.22", "45.22-", "45.22 DR" or "45.22 CR". Parentheses, a
// leading or trailing minus and a DR suffix all mean negative.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, fmt.Errorf("ParseAmount: empty amount")
	}

	negative := false
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "CR"):
		s = strings.TrimSpace(s[:len(s)-2])
	}

	s = strings.TrimPrefix(strings.ToUpper(s), "USD")
	s = strings.ReplaceAll(s, "−", "-")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ',' || r == '$' || r == '£' || r == '€' || unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("ParseAmount: %q has no digits", text)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseAmount: %q: %w", text, err)
	}
	if negative {
		d = d.Abs().Neg()
	}
	return d, nil
}

// Channel prefixes that precede the merchant on card and ACH lines, longest
// first. A bare "POS" is left alone since merchant names start with it.
var payeePrefixes = []string{
	"PURCHASE AUTHORIZED ON",
	"DEBIT CARD PURCHASE",
	"RECURRING PAYMENT",
	"POS WITHDRAWAL",
	"POS PURCHASE",
	"CHECK CARD",
	"DEBIT CARD",
	"POS DEBIT",
	"CHECKCARD",
	"ACH DEBIT",
}

// Two-letter state codes stripped from the end of a payee. CO, IN, OR, ME and
// OK are left out because they collide with words in merchant names.
var stateCodes = map[string]bool{
	"AK": true, "AL": true, "AR": true, "AZ": true, "CA": true, "CT": true,
	"DC": true, "DE": true, "FL": true, "GA": true, "HI": true, "IA": true,
	"ID": true, "IL": true, "KS": true, "KY": true, "LA": true, "MA": true,
	"MD": true, "MI": true, "MN": true, "MO": true, "MS": true, "MT": true,
	"NC": true, "ND": true, "NE": true, "NH": true, "NJ": true, "NM": true,
	"NV": true, "NY": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VA": true, "VT": true, "WA": true,
	"WI": true, "WV": true, "WY": true,
}

var (
	refTokenPattern   = regexp.MustCompile(`^#\S*\d\S*$`)
	digitTokenPattern = regexp.MustCompile(`^\d{4,}$`)
	dateTokenPattern  = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)
)

// CleanPayee derives a counterparty name from a raw description. It drops
// channel prefixes, trailing reference numbers, trailing state codes and
// repeated whitespace. The first remaining token is never removed.
func CleanPayee(description string) string {
	tokens := strings.Fields(description)
	if len(tokens) == 0 {
		return ""
	}

	upper := strings.ToUpper(strings.Join(tokens, " "))
	for _, prefix := range payeePrefixes {
		n := len(strings.Fields(prefix))
		if len(tokens) > n && strings.HasPrefix(upper, prefix+" ") && hasLetter(tokens[n:]) {
			tokens = tokens[n:]
			break
		}
	}

	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		switch {
		case refTokenPattern.MatchString(last),
			digitTokenPattern.MatchString(last),
			dateTokenPattern.MatchString(last):
			tokens = tokens[:len(tokens)-1]
		case len(tokens) > 2 && stateCodes[last]:
			tokens = tokens[:len(tokens)-1]
		default:
			return strings.Join(tokens, " ")
		}
	}
	return strings.Join(tokens, " ")
}

func hasLetter(tokens []string) bool {
	for _, t := range tokens {
		for _, r := range t {
			if unicode.IsLetter(r) {
				return true
			}
		}
	}
	return false
}

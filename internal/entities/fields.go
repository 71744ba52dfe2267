package entities

import "strings"

type field int

const (
	fieldUnknown field = iota
	fieldDate
	fieldPostedDate
	fieldAmount
	fieldDeposit
	fieldWithdrawal
	fieldDebitCredit
	fieldPayee
	fieldDescription
	fieldBalance
)

type statementField int

const (
	stmtNone statementField = iota
	stmtAccount
	stmtBank
	stmtPeriodStart
	stmtPeriodEnd
	stmtEndingBalance
)

// baseType lowercases a span type and strips any parent prefix such as
// "table_item/".
func baseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.LastIndex(t, "/"); i >= 0 {
		t = t[i+1:]
	}
	return t
}

func classifyStatement(t string) statementField {
	switch baseType(t) {
	case "account_number", "account_id", "account":
		return stmtAccount
	case "bank_name", "institution", "bank":
		return stmtBank
	case "statement_start_date", "period_start", "start_date":
		return stmtPeriodStart
	case "statement_end_date", "period_end", "end_date":
		return stmtPeriodEnd
	case "ending_balance", "closing_balance":
		return stmtEndingBalance
	}
	return stmtNone
}

// classify maps a row-level span type onto the field it feeds. Order
// matters: "debit_credit" must win over "debit", "balance" over "amount".
func classify(t string) field {
	b := baseType(t)
	switch {
	case b == "":
		return fieldUnknown
	case strings.Contains(b, "debit_credit"), b == "type" || b == "transaction_type":
		return fieldDebitCredit
	case strings.Contains(b, "posted") || strings.Contains(b, "posting"):
		return fieldPostedDate
	case strings.Contains(b, "date"):
		return fieldDate
	case strings.Contains(b, "balance"):
		return fieldBalance
	case strings.Contains(b, "deposit") || strings.Contains(b, "credit"):
		return fieldDeposit
	case strings.Contains(b, "withdrawal") || strings.Contains(b, "debit"):
		return fieldWithdrawal
	case strings.Contains(b, "amount"):
		return fieldAmount
	case strings.Contains(b, "payee") || strings.Contains(b, "merchant"):
		return fieldPayee
	case strings.Contains(b, "description") || strings.Contains(b, "memo"):
		return fieldDescription
	}
	return fieldUnknown
}

func (f field) isAmount() bool {
	return f == fieldAmount || f == fieldDeposit || f == fieldWithdrawal
}

type side int

const (
	sideUnknown side = iota
	sideDebit
	sideCredit
)

// parseSide reads a debit_credit value.
func parseSide(text string) side {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), ".")) {
	case "debit", "dr", "d", "withdrawal", "withdrawals", "out", "-":
		return sideDebit
	case "credit", "cr", "c", "deposit", "deposits", "in", "+":
		return sideCredit
	}
	return sideUnknown
}

package entities

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC) }

func span(typ, text string, conf float64) Entity {
	return Entity{Type: typ, MentionText: text, Confidence: conf}
}

func row(props ...Entity) Entity {
	return Entity{Type: "table_item", Confidence: 1, Properties: props}
}

func TestNormalizeRowsWithProperties(t *testing.T) {
	doc := Document{
		DocumentType: "bank_statement",
		Entities: []Entity{
			span("account_number", "XXXX1234", 0.99),
			span("bank_name", "First Bank", 0.97),
			span("statement_start_date", "01/01/2024", 0.95),
			span("statement_end_date", "01/31/2024", 0.95),
			row(
				span("table_item/transaction_date", "01/05/2024", 0.9),
				span("table_item/transaction_amount", "45.10", 0.8),
				span("table_item/debit_credit", "debit", 0.95),
				span("table_item/description", "POS PURCHASE COFFEE SHOP 1234", 0.85),
			),
			row(
				span("transaction_date", "2024-01-06", 0.92),
				span("transaction_amount", "1,250.00", 0.99),
				span("payee", "ACME PAYROLL", 0.9),
			),
		},
	}

	txs, stats := Normalizer{Now: fixedNow}.NormalizeWithStats(doc)
	if len(txs) != 2 || stats.Kept != 2 || stats.Dropped != 0 {
		t.Fatalf("got %d transactions, stats %+v", len(txs), stats)
	}

	first := txs[0]
	if first.Date == nil || *first.Date != (civil.Date{Year: 2024, Month: time.January, Day: 5}) {
		t.Errorf("date = %v", first.Date)
	}
	if first.Debit != 45.10 || first.Credit != 0 {
		t.Errorf("debit/credit = %v/%v", first.Debit, first.Credit)
	}
	if first.Metadata.Confidence == nil || *first.Metadata.Confidence != 0.8 {
		t.Errorf("confidence = %v", first.Metadata.Confidence)
	}
	if first.Payee == nil || *first.Payee != "COFFEE SHOP" {
		t.Errorf("payee = %v", first.Payee)
	}

	second := txs[1]
	if second.Credit != 1250 || second.Debit != 0 {
		t.Errorf("credit = %v", second.Credit)
	}
	if second.Description != "ACME PAYROLL" {
		t.Errorf("description = %q", second.Description)
	}

	for i, tx := range txs {
		if tx.AccountID == nil || *tx.AccountID != "XXXX1234" {
			t.Errorf("tx %d account = %v", i, tx.AccountID)
		}
		if tx.SourceBank == nil || *tx.SourceBank != "First Bank" {
			t.Errorf("tx %d bank = %v", i, tx.SourceBank)
		}
		if tx.StatementPeriod == nil || tx.StatementPeriod.End.Day != 31 {
			t.Errorf("tx %d period = %v", i, tx.StatementPeriod)
		}
		if tx.Metadata.Extra[MetaDocumentType] != "bank_statement" {
			t.Errorf("tx %d document type = %v", i, tx.Metadata.Extra)
		}
	}
}

func TestNormalizeSignDecidesSide(t *testing.T) {
	tests := []struct {
		name       string
		props      []Entity
		wantDebit  float64
		wantCredit float64
	}{
		{
			name:      "negative amount is a debit",
			props:     []Entity{span("date", "1/2/2024", 1), span("amount", "-20.00", 1)},
			wantDebit: 20,
		},
		{
			name:       "positive amount is a credit",
			props:      []Entity{span("date", "1/2/2024", 1), span("amount", "20.00", 1)},
			wantCredit: 20,
		},
		{
			name:      "parenthesized amount is a debit",
			props:     []Entity{span("date", "1/2/2024", 1), span("amount", "(20.00)", 1)},
			wantDebit: 20,
		},
		{
			name:       "explicit credit overrides sign",
			props:      []Entity{span("date", "1/2/2024", 1), span("amount", "-20.00", 1), span("debit_credit", "credit", 1)},
			wantCredit: 20,
		},
		{
			name:      "withdrawal span is a debit",
			props:     []Entity{span("date", "1/2/2024", 1), span("transaction_withdrawal", "20.00", 1)},
			wantDebit: 20,
		},
		{
			name:       "deposit span is a credit",
			props:      []Entity{span("date", "1/2/2024", 1), span("transaction_deposit", "$20.00", 1)},
			wantCredit: 20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := Normalizer{Now: fixedNow}.Normalize(Document{Entities: []Entity{row(tt.props...)}})
			if len(txs) != 1 {
				t.Fatalf("expected 1 transaction, got %d", len(txs))
			}
			if txs[0].Debit != tt.wantDebit || txs[0].Credit != tt.wantCredit {
				t.Errorf("debit/credit = %v/%v, want %v/%v", txs[0].Debit, txs[0].Credit, tt.wantDebit, tt.wantCredit)
			}
		})
	}
}

func TestNormalizeDropsRowsWithoutDateAndAmount(t *testing.T) {
	doc := Document{Entities: []Entity{
		row(span("description", "subtotal", 0.9)),
		row(span("date", "1/2/2024", 0.9), span("description", "no amount", 0.9)),
		row(span("amount", "5.00", 0.9), span("description", "no date", 0.9)),
	}}

	txs, stats := Normalizer{Now: fixedNow}.NormalizeWithStats(doc)
	if stats.Rows != 3 || stats.Kept != 2 || stats.Dropped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(txs) != 2 || txs[0].Description != "no amount" || txs[1].Description != "no date" {
		t.Errorf("transactions = %+v", txs)
	}
	if txs[1].Date != nil {
		t.Error("undated row must keep a nil date")
	}
}

func TestNormalizeGroupsFlatSpans(t *testing.T) {
	doc := Document{Entities: []Entity{
		span("account_number", "000123", 0.9),
		span("transaction_date", "02/01/2024", 0.9),
		span("description", "RENT", 0.9),
		span("transaction_amount", "-1200.00", 0.7),
		span("transaction_date", "02/03/2024", 0.9),
		span("transaction_amount", "15.00", 0.6),
		span("description", "INTEREST", 0.9),
		span("transaction_amount", "-3.50", 0.9),
	}}

	txs := Normalizer{Now: fixedNow}.Normalize(doc)
	if len(txs) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(txs), txs)
	}
	if txs[0].Description != "RENT" || txs[0].Debit != 1200 {
		t.Errorf("row 0 = %+v", txs[0])
	}
	if txs[1].Description != domain.DescriptionPlaceholder || txs[1].Credit != 15 || *txs[1].Metadata.Confidence != 0.6 {
		t.Errorf("row 1 = %+v", txs[1])
	}
	// The third row has an amount but no date of its own.
	if txs[2].Description != "INTEREST" || txs[2].Debit != 3.5 || txs[2].Date != nil {
		t.Errorf("row 2 = %+v", txs[2])
	}
	for _, tx := range txs {
		if tx.AccountID == nil || *tx.AccountID != "000123" {
			t.Errorf("account = %v", tx.AccountID)
		}
	}
}

func TestGroupRowsStartsRowOnText(t *testing.T) {
	tests := []struct {
		name  string
		spans []Entity
		want  []string
	}{
		{
			name: "description leads each row",
			spans: []Entity{
				span("description", "RENT", 0.9),
				span("transaction_date", "02/01/2024", 0.9),
				span("transaction_amount", "-1200.00", 0.9),
				span("description", "PAYROLL ACME", 0.9),
				span("transaction_date", "02/03/2024", 0.9),
				span("transaction_amount", "2500.00", 0.9),
			},
			want: []string{"RENT", "PAYROLL ACME"},
		},
		{
			name: "repeated description without date",
			spans: []Entity{
				span("description", "FEE", 0.9),
				span("transaction_amount", "-5.00", 0.9),
				span("description", "REFUND", 0.9),
				span("transaction_amount", "5.00", 0.9),
			},
			want: []string{"FEE", "REFUND"},
		},
		{
			name: "description and payee share a row",
			spans: []Entity{
				span("transaction_date", "02/01/2024", 0.9),
				span("description", "ACH DEBIT GYM 5512", 0.9),
				span("payee", "GYM", 0.9),
				span("transaction_amount", "-40.00", 0.9),
				span("payee", "GROCER", 0.9),
				span("transaction_date", "02/02/2024", 0.9),
				span("transaction_amount", "-12.00", 0.9),
			},
			want: []string{"ACH DEBIT GYM 5512", "GROCER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := Normalizer{Now: fixedNow}.Normalize(Document{Entities: tt.spans})
			if len(txs) != len(tt.want) {
				t.Fatalf("expected %d rows, got %d: %+v", len(tt.want), len(txs), txs)
			}
			for i, want := range tt.want {
				if txs[i].Description != want {
					t.Errorf("row %d description = %q, want %q", i, txs[i].Description, want)
				}
			}
		})
	}
}

func TestNormalizeConflictingSpans(t *testing.T) {
	doc := Document{Entities: []Entity{row(
		span("date", "not a date", 0.99),
		span("date", "03/04/2024", 0.9),
		span("date", "03/05/2024", 0.4),
		span("amount", "10.00", 0.95),
		span("amount", "11.00", 0.5),
	)}}

	txs := Normalizer{Now: fixedNow}.Normalize(doc)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.Date.Day != 4 || tx.Credit != 10 {
		t.Errorf("first resolvable span should win: %+v", tx)
	}
	if *tx.Metadata.Confidence != 0.4 {
		t.Errorf("confidence = %v, want 0.4", *tx.Metadata.Confidence)
	}
}

func TestNormalizeEndingBalanceOnLastRow(t *testing.T) {
	doc := Document{Entities: []Entity{
		row(span("date", "1/2/2024", 1), span("amount", "1.00", 1), span("balance", "101.00", 1)),
		row(span("date", "1/3/2024", 1), span("amount", "2.00", 1)),
		span("ending_balance", "$103.00", 1),
	}}

	txs := Normalizer{Now: fixedNow}.Normalize(doc)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Balance == nil || *txs[0].Balance != 101 || txs[0].EndingBalance != nil {
		t.Errorf("row 0 = %+v", txs[0])
	}
	if txs[1].EndingBalance == nil || *txs[1].EndingBalance != 103 {
		t.Errorf("ending balance = %v", txs[1].EndingBalance)
	}
	if txs[1].Metadata.EndingBalance == nil || *txs[1].Metadata.EndingBalance != 103 {
		t.Errorf("metadata ending balance = %v", txs[1].Metadata.EndingBalance)
	}
}

func TestNormalizeMissingDescription(t *testing.T) {
	txs := Normalizer{Now: fixedNow}.Normalize(Document{Entities: []Entity{
		row(span("date", "1/2/2024", 1), span("amount", "1.00", 1)),
	}})
	if len(txs) != 1 || !txs[0].Metadata.InferredDescription || txs[0].Payee != nil {
		t.Errorf("got %+v", txs)
	}
}

func TestNormalizeBareDateUsesCurrentYear(t *testing.T) {
	txs := Normalizer{Now: fixedNow}.Normalize(Document{Entities: []Entity{
		row(span("date", "3/9", 1), span("amount", "1.00", 1)),
	}})
	if len(txs) != 1 || txs[0].Date.Year != 2026 {
		t.Errorf("got %+v", txs)
	}
}

func TestDecodeDocument(t *testing.T) {
	in := `{
		"documentType": "bank_statement",
		"entities": [
			{"type": "account_number", "mentionText": "1234", "confidence": 0.9},
			{"type": "table_item", "mentionText": "", "confidence": 1, "properties": [
				{"type": "transaction_date", "mentionText": "01/05/2024", "confidence": 0.9},
				{"type": "transaction_amount", "mentionText": "-3.00", "confidence": 0.8}
			]}
		]
	}`
	doc, err := DecodeDocument(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc.DocumentType != "bank_statement" || len(doc.Entities) != 2 || len(doc.Entities[1].Properties) != 2 {
		t.Errorf("doc = %+v", doc)
	}

	if _, err := DecodeDocument(strings.NewReader("{")); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]field{
		"transaction_date":            fieldDate,
		"table_item/transaction_date": fieldDate,
		"posted_date":                 fieldPostedDate,
		"transaction_amount":          fieldAmount,
		"transaction_deposit":         fieldDeposit,
		"transaction_withdrawal":      fieldWithdrawal,
		"debit_credit":                fieldDebitCredit,
		"running_balance":             fieldBalance,
		"payee":                       fieldPayee,
		"merchant_name":               fieldPayee,
		"description":                 fieldDescription,
		"page_number":                 fieldUnknown,
	}
	for in, want := range tests {
		if got := classify(in); got != want {
			t.Errorf("classify(%q) = %v, want %v", in, got, want)
		}
	}
}

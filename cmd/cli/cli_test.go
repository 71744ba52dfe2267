package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/infra/workbook"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

const statementText = `FIRST LOCAL BANK
Account Number: XXXXXX1234
Deposits & Credits
01/02 1,200.00 MOBILE DEPOSIT REF #12345
Withdrawals
01/03 (45.22) POS DEBIT COFFEE SHOP MA`

const entityDocument = `{
  "documentType": "bank_statement",
  "entities": [
    {"type": "account_number", "mentionText": "XXXX1234", "confidence": 0.99},
    {"type": "table_item", "confidence": 1, "properties": [
      {"type": "transaction_date", "mentionText": "01/05/2024", "confidence": 0.9},
      {"type": "transaction_amount", "mentionText": "45.10", "confidence": 0.8},
      {"type": "debit_credit", "mentionText": "debit", "confidence": 0.95},
      {"type": "description", "mentionText": "POS PURCHASE COFFEE SHOP 1234", "confidence": 0.85}
    ]}
  ]
}`

// run executes the CLI with args and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func workbookConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "config.yaml", "ledger:\n  backend: workbook\n  workbook_dir: "+filepath.Join(dir, "ledgers")+"\n")
}

func TestParseFromStdin(t *testing.T) {
	out, err := run(t, statementText, "parse", "--year", "2024")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", out)
	}
	if lines[0] != "Date,Payee,Description,Amount,Balance,Memo" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "01/02/2024,") || !strings.Contains(lines[1], ",1200.00,") {
		t.Errorf("deposit row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "01/03/2024,") || !strings.Contains(lines[2], ",-45.22,") {
		t.Errorf("withdrawal row = %q", lines[2])
	}
}

func TestParseDebitCreditToFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "january.txt", statementText)
	outPath := filepath.Join(dir, "january.csv")

	if _, err := run(t, "", "parse", in, "--year", "2024", "--mode", "debit_credit", "--delimiter", ";", "-o", outPath); err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.HasPrefix(got, "Date;Description;Payee;Debit;Credit;Balance;Memo\n") {
		t.Errorf("header = %q", got)
	}
	if !strings.Contains(got, ";45.22;0.00;") {
		t.Errorf("expected unsigned debit, got %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("file output must not end with a newline")
	}
}

func TestParseRejectsBadMode(t *testing.T) {
	if _, err := run(t, statementText, "parse", "--mode", "fancy"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNormalizeEntityDocument(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "doc.json", entityDocument)

	out, err := run(t, "", "normalize", in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.Contains(out, "01/05/2024,COFFEE SHOP,POS PURCHASE COFFEE SHOP 1234,-45.10") {
		t.Errorf("output = %q", out)
	}
}

func TestHashMarksDuplicates(t *testing.T) {
	text := "Withdrawals\n01/03 45.22 COFFEE SHOP\n01/03 45.22 COFFEE SHOP\n01/04 10.00 PARKING"
	out, err := run(t, text, "hash", "--format", "text", "--year", "2024")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", out)
	}
	if strings.Contains(lines[0], "duplicate") || !strings.Contains(lines[1], "duplicate") {
		t.Errorf("duplicate marks wrong: %q", out)
	}
	if strings.Fields(lines[0])[0] != strings.Fields(lines[1])[0] {
		t.Error("identical transactions must share a hash")
	}
	if len(strings.Fields(lines[2])[0]) != 64 {
		t.Errorf("hash = %q", strings.Fields(lines[2])[0])
	}
}

func TestExportXLSX(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "january.txt", statementText)
	outPath := filepath.Join(dir, "january.xlsx")

	if _, err := run(t, "", "export-xlsx", in, "--year", "2024", "--out", outPath); err != nil {
		t.Fatalf("export-xlsx: %v", err)
	}
	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header and 2 rows, got %d", len(rows))
	}
}

func TestExportXLSXRequiresOut(t *testing.T) {
	if _, err := run(t, statementText, "export-xlsx"); err == nil {
		t.Fatal("expected error without --out")
	}
}

func TestLedgerCreateThenAppend(t *testing.T) {
	cfg := workbookConfig(t)
	in := writeFile(t, t.TempDir(), "january.txt", statementText)

	out, err := run(t, "", "--config", cfg, "ledger", "create", in, "--year", "2024")
	if err != nil {
		t.Fatalf("ledger create: %v", err)
	}
	if !strings.Contains(out, "rows: 2") {
		t.Errorf("create output = %q", out)
	}
	var id string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "spreadsheet: "); ok {
			id = v
		}
	}
	if id == "" {
		t.Fatalf("no spreadsheet id in %q", out)
	}

	out, err = run(t, "", "--config", cfg, "ledger", "append", in, "--year", "2024", "--spreadsheet", id)
	if err != nil {
		t.Fatalf("ledger append: %v", err)
	}
	if !strings.Contains(out, "appended: 0") || !strings.Contains(out, "duplicates: 2") {
		t.Errorf("append output = %q", out)
	}
}

func TestLedgerAppendRequiresSpreadsheet(t *testing.T) {
	if _, err := run(t, statementText, "--config", workbookConfig(t), "ledger", "append"); err == nil {
		t.Fatal("expected error without --spreadsheet")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	if _, err := run(t, statementText, "--log-level", "loud", "parse"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "ledger dev\n") {
		t.Errorf("version = %q", out)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format, path, body string
		want               string
		wantErr            bool
	}{
		{formatAuto, "doc.json", "", formatEntities, false},
		{formatAuto, "", `  {"entities": []}`, formatEntities, false},
		{formatAuto, "statement.txt", "01/02 10.00 X", formatText, false},
		{formatText, "doc.json", "{}", formatText, false},
		{"pdf", "x.pdf", "", "", true},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.format, tt.path, []byte(tt.body))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolveFormat(%q, %q) = %q, %v", tt.format, tt.path, got, err)
		}
	}
}

func TestUploadURI(t *testing.T) {
	tests := []struct {
		dest, bucket, file string
		want               string
		wantErr            bool
	}{
		{"", "statements", "/tmp/jan.pdf", "gs://statements/statements/jan.pdf", false},
		{"gs://b/in/", "", "jan.pdf", "gs://b/in/jan.pdf", false},
		{"gs://b/exact.pdf", "", "jan.pdf", "gs://b/exact.pdf", false},
		{"", "", "jan.pdf", "", true},
		{"s3://b/x", "", "jan.pdf", "", true},
	}
	for _, tt := range tests {
		got, err := uploadURI(tt.dest, tt.bucket, tt.file)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("uploadURI(%q, %q, %q) = %q, %v", tt.dest, tt.bucket, tt.file, got, err)
		}
	}
}

func TestDefaultTitle(t *testing.T) {
	if got := defaultTitle("Statement", "/data/2024-01.txt"); got != "Statement 2024-01" {
		t.Errorf("title = %q", got)
	}
	if got := defaultTitle("", "-"); got != "Statement" {
		t.Errorf("title = %q", got)
	}
}

func TestRunIngestSummarizesEachStatement(t *testing.T) {
	calls := map[string]int{}
	ingest := func(ctx context.Context, uri string) (*pipeline.PipelineState, error) {
		calls[uri]++
		switch uri {
		case "gs://b/jan.pdf":
			return &pipeline.PipelineState{
				Source:       pipeline.SourceEntities,
				Transactions: make([]domain.Transaction, 3),
				Created:      &ledger.CreateResult{SpreadsheetID: "sheet-1"},
				CSVURI:       "gs://exports/jan.csv",
			}, nil
		case "gs://b/feb.pdf":
			return &pipeline.PipelineState{
				Source:       pipeline.SourceText,
				Transactions: make([]domain.Transaction, 2),
				Appended:     &ledger.AppendResult{Appended: 1, Duplicates: 1},
			}, nil
		case "gs://b/blank.pdf":
			return nil, fmt.Errorf("pipeline step 5 failed: %w", pipeline.ErrNoTransactions)
		}
		return nil, &ledger.Error{Kind: ledger.KindPrecondition, Err: errors.New("bad request")}
	}

	var out bytes.Buffer
	err := runIngest(context.Background(), &out, []string{"gs://b/jan.pdf", "gs://b/feb.pdf", "gs://b/blank.pdf", "gs://b/bad.pdf"}, 3, ingest)
	if err == nil || !strings.Contains(err.Error(), "2 of 4 statements failed") {
		t.Fatalf("err = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"gs://b/jan.pdf: 3 transactions (entities), created sheet-1",
		"gs://b/jan.pdf: csv gs://exports/jan.csv",
		"gs://b/feb.pdf: 2 transactions (text), appended 1, duplicates 1",
		"gs://b/blank.pdf: failed after 1 attempt(s)",
		"gs://b/bad.pdf: failed after 1 attempt(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if calls["gs://b/blank.pdf"] != 1 || calls["gs://b/bad.pdf"] != 1 {
		t.Errorf("permanent failures were retried: %v", calls)
	}
}

// flakyHashes fails the first write to the hashes sheet.
type flakyHashes struct {
	*workbook.Store
	hashWrites int
}

func (f *flakyHashes) WriteValues(ctx context.Context, spreadsheetID, a1Range string, rows [][]any) error {
	if strings.HasPrefix(a1Range, ledger.HashesSheet+"!") {
		f.hashWrites++
		if f.hashWrites == 1 {
			return &ledger.StatusError{Code: 503, Body: "backend error"}
		}
	}
	return f.Store.WriteValues(ctx, spreadsheetID, a1Range, rows)
}

func TestRunIngestDoesNotReplayPartialLedgerWrites(t *testing.T) {
	store, err := workbook.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ss, err := store.CreateSpreadsheet(ctx, "Ledger")
	if err != nil {
		t.Fatal(err)
	}
	svc := &flakyHashes{Store: store}

	tx := domain.NewTransaction("COFFEE SHOP")
	tx.Date = domain.DatePtr(civil.Date{Year: 2024, Month: 1, Day: 3})
	tx.SetSignedAmount(-45.22)

	step := &pipeline.LedgerExportStep{
		Exporter: ledger.NewExporter(svc),
		Target:   pipeline.LedgerTarget{SpreadsheetID: ss.ID},
	}
	ingest := func(ctx context.Context, uri string) (*pipeline.PipelineState, error) {
		state := &pipeline.PipelineState{GCSURI: uri, Transactions: []domain.Transaction{tx}}
		if err := pipeline.NewPipeline(step).Execute(ctx, state); err != nil {
			return nil, err
		}
		return state, nil
	}

	var out bytes.Buffer
	if err := runIngest(ctx, &out, []string{"gs://b/jan.pdf"}, 2, ingest); err == nil {
		t.Fatal("expected the failed hash write to fail the run")
	}
	if !strings.Contains(out.String(), "failed after 1 attempt(s)") {
		t.Errorf("output = %q", out.String())
	}
	if svc.hashWrites != 1 {
		t.Errorf("hash writes = %d, want 1", svc.hashWrites)
	}
	values, err := store.ReadValues(ctx, ss.ID, "Sheet1!A:A")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 {
		t.Errorf("expected header and 1 data row, ledger holds %d rows", len(values))
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"fetch", errors.New("pipeline step 1 failed: object not found"), true},
		{"no transactions", fmt.Errorf("step: %w", pipeline.ErrNoTransactions), false},
		{"ledger step", fmt.Errorf("%w: %w", pipeline.ErrLedgerExport, errors.New("boom")), false},
		{"ledger error", &ledger.Error{Kind: ledger.KindWriteFailed}, false},
		{"status error", fmt.Errorf("read: %w", &ledger.StatusError{Code: 503}), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("%s: retryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

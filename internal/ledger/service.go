// Package ledger exports canonical transactions into a spreadsheet that acts
// as an append-only ledger, with a hidden sheet of identity hashes used for
// deduplication.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HashesSheet is the hidden sheet holding one identity hash per exported row.
const HashesSheet = "Hashes"

// Spreadsheet is a created ledger document.
type Spreadsheet struct {
	ID     string
	URL    string
	Sheets []Sheet
}

// Sheet is a tab inside a spreadsheet.
type Sheet struct {
	ID    int64
	Title string
}

// Service is the spreadsheet and file store the exporter drives. Non-2xx
// responses must be returned as *StatusError so callers can branch on them.
type Service interface {
	CreateSpreadsheet(ctx context.Context, title string) (*Spreadsheet, error)
	WriteValues(ctx context.Context, spreadsheetID, a1Range string, rows [][]any) error
	ReadValues(ctx context.Context, spreadsheetID, a1Range string) ([][]any, error)
	AddSheet(ctx context.Context, spreadsheetID, title string, hidden bool) error
	GetParents(ctx context.Context, fileID string) ([]string, error)
	UpdateParents(ctx context.Context, fileID string, add, remove []string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// StatusError is a non-2xx response from the backing service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ledger service returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("ledger service returned HTTP %d: %s", e.Code, e.Body)
}

// IsSheetMissing reports whether err means the requested sheet does not
// exist. Only 400 and 404 qualify; auth and quota failures do not.
func IsSheetMissing(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusBadRequest || se.Code == http.StatusNotFound
}

// A1 builds an A1 range on sheet, quoting the sheet name when needed.
func A1(sheet, cells string) string {
	if needsQuoting(sheet) {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}

func needsQuoting(sheet string) bool {
	for _, r := range sheet {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

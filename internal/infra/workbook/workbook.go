// Package workbook is a local ledger backend: spreadsheets are .xlsx files
// under a root directory and folders are its subdirectories.
package workbook

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// RootFolder is the parent id reported for files directly under the root.
const RootFolder = "root"

const ext = ".xlsx"

// Store implements ledger.Service on the local filesystem.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore returns a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}
	return &Store{root: abs}, nil
}

var _ ledger.Service = (*Store)(nil)

func statusErr(code int, format string, args ...any) error {
	return &ledger.StatusError{Code: code, Body: fmt.Sprintf(format, args...)}
}

// CreateSpreadsheet creates an empty workbook in the root folder.
func (s *Store) CreateSpreadsheet(ctx context.Context, title string) (*ledger.Spreadsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	path := filepath.Join(s.root, id+ext)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetDocProps(&excelize.DocProperties{Title: title}); err != nil {
		return nil, fmt.Errorf("CreateSpreadsheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("CreateSpreadsheet: %w", err)
	}

	return &ledger.Spreadsheet{
		ID:     id,
		URL:    "file://" + filepath.ToSlash(path),
		Sheets: []ledger.Sheet{{ID: 0, Title: f.GetSheetName(0)}},
	}, nil
}

// WriteValues writes rows starting at the top-left cell of a1Range.
func (s *Store) WriteValues(ctx context.Context, spreadsheetID, a1Range string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cells, err := splitRange(a1Range)
	if err != nil {
		return err
	}
	start := cells
	if i := strings.Index(cells, ":"); i >= 0 {
		start = cells[:i]
	}
	col, row, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return statusErr(http.StatusBadRequest, "invalid range %q", a1Range)
	}

	return s.withFile(spreadsheetID, true, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			return statusErr(http.StatusBadRequest, "Unable to parse range: %s", a1Range)
		}
		for i, values := range rows {
			cell, err := excelize.CoordinatesToCellName(col, row+i)
			if err != nil {
				return fmt.Errorf("WriteValues: %w", err)
			}
			v := values
			if err := f.SetSheetRow(sheet, cell, &v); err != nil {
				return fmt.Errorf("WriteValues: %w", err)
			}
		}
		return nil
	})
}

// ReadValues reads a single column range such as "Hashes!A:A". Trailing
// empty rows are not returned.
func (s *Store) ReadValues(ctx context.Context, spreadsheetID, a1Range string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cells, err := splitRange(a1Range)
	if err != nil {
		return nil, err
	}
	colName, _, _ := strings.Cut(cells, ":")
	colName = strings.TrimRight(colName, "0123456789")
	col, err := excelize.ColumnNameToNumber(colName)
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, "invalid range %q", a1Range)
	}

	var out [][]any
	err = s.withFile(spreadsheetID, false, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			return statusErr(http.StatusBadRequest, "Unable to parse range: %s", a1Range)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("ReadValues: %w", err)
		}
		last := 0
		for i, r := range rows {
			if len(r) >= col && r[col-1] != "" {
				out = append(out, []any{r[col-1]})
				last = i + 1
			} else {
				out = append(out, []any{})
			}
		}
		out = out[:last]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddSheet adds a tab, optionally hidden.
func (s *Store) AddSheet(ctx context.Context, spreadsheetID, title string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withFile(spreadsheetID, true, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(title); idx >= 0 {
			return statusErr(http.StatusBadRequest, "A sheet with the name %q already exists", title)
		}
		if _, err := f.NewSheet(title); err != nil {
			return fmt.Errorf("AddSheet: %w", err)
		}
		if hidden {
			if err := f.SetSheetVisible(title, false); err != nil {
				return fmt.Errorf("AddSheet: %w", err)
			}
		}
		return nil
	})
}

// GetParents returns the folder holding the file.
func (s *Store) GetParents(ctx context.Context, fileID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.locate(fileID)
	if err != nil {
		return nil, err
	}
	return []string{s.folderOf(path)}, nil
}

// UpdateParents moves the file into the single folder in add. Folders are
// not created on demand.
func (s *Store) UpdateParents(ctx context.Context, fileID string, add, remove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(add) != 1 {
		return statusErr(http.StatusBadRequest, "exactly one parent is supported, got %d", len(add))
	}
	path, err := s.locate(fileID)
	if err != nil {
		return err
	}
	for _, r := range remove {
		if r != s.folderOf(path) {
			return statusErr(http.StatusBadRequest, "file %s is not in folder %s", fileID, r)
		}
	}

	dir := s.root
	if add[0] != RootFolder {
		dir = filepath.Join(s.root, filepath.FromSlash(add[0]))
		if !strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
			return statusErr(http.StatusBadRequest, "invalid folder %q", add[0])
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return statusErr(http.StatusNotFound, "folder %s not found", add[0])
	}
	if err := os.Rename(path, filepath.Join(dir, fileID+ext)); err != nil {
		return fmt.Errorf("UpdateParents: %w", err)
	}
	return nil
}

// DeleteFile removes the workbook.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.locate(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("DeleteFile: %w", err)
	}
	return nil
}

// Path returns the current location of a spreadsheet.
func (s *Store) Path(fileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locate(fileID)
}

func (s *Store) locate(fileID string) (string, error) {
	if fileID == "" || strings.ContainsAny(fileID, `/\`) {
		return "", statusErr(http.StatusBadRequest, "invalid file id %q", fileID)
	}
	var found string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == fileID+ext {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("locate: %w", err)
	}
	if found == "" {
		return "", statusErr(http.StatusNotFound, "File not found: %s", fileID)
	}
	return found, nil
}

func (s *Store) folderOf(path string) string {
	rel, err := filepath.Rel(s.root, filepath.Dir(path))
	if err != nil || rel == "." {
		return RootFolder
	}
	return filepath.ToSlash(rel)
}

func (s *Store) withFile(fileID string, save bool, fn func(f *excelize.File) error) error {
	path, err := s.locate(fileID)
	if err != nil {
		return err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", fileID, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if save {
		if err := f.Save(); err != nil {
			return fmt.Errorf("save %s: %w", fileID, err)
		}
	}
	return nil
}

// splitRange splits "Sheet!A1" or "'My Sheet'!A:A" into its parts.
func splitRange(a1Range string) (sheet, cells string, err error) {
	i := strings.LastIndex(a1Range, "!")
	if i <= 0 || i == len(a1Range)-1 {
		return "", "", statusErr(http.StatusBadRequest, "invalid range %q", a1Range)
	}
	sheet, cells = a1Range[:i], a1Range[i+1:]
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, cells, nil
}

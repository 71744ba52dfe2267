// Package xlsxexport writes canonical transactions into an Excel workbook
// using the ledger row layout.
package xlsxexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// DefaultSheet is the name of the transactions sheet.
const DefaultSheet = "Transactions"

// Options controls the workbook layout.
type Options struct {
	SheetName string
	// WithHashes adds the hidden hashes sheet so the workbook can later be
	// used as an append target.
	WithHashes bool
}

// Build returns a workbook holding txs. The caller must Close it.
func Build(txs []domain.Transaction, opts Options) (*excelize.File, error) {
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: rename sheet: %w", err)
	}

	txs = domain.Exportable(txs)
	header := ledger.HeaderRow()
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: header: %w", err)
	}
	for i, tx := range txs {
		row := ledger.RowValues(tx)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("Build: row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("Build: row %d: %w", i, err)
		}
	}

	if opts.WithHashes {
		if err := writeHashes(f, txs); err != nil {
			f.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
	}
	return f, nil
}

func writeHashes(f *excelize.File, txs []domain.Transaction) error {
	if _, err := f.NewSheet(ledger.HashesSheet); err != nil {
		return fmt.Errorf("hashes sheet: %w", err)
	}
	if err := f.SetCellValue(ledger.HashesSheet, "A1", dedup.HeaderCell); err != nil {
		return fmt.Errorf("hashes header: %w", err)
	}
	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(ledger.HashesSheet, cell, string(dedup.HashTransaction(tx))); err != nil {
			return fmt.Errorf("hash %d: %w", i, err)
		}
	}
	if err := f.SetSheetVisible(ledger.HashesSheet, false); err != nil {
		return fmt.Errorf("hide hashes sheet: %w", err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, txs []domain.Transaction, opts Options) error {
	f, err := Build(txs, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

// WriteFile saves the workbook at path.
func WriteFile(path string, txs []domain.Transaction, opts Options) error {
	f, err := Build(txs, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteFile: %w", err)
	}
	return nil
}

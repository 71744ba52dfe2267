package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/entities"
	"github.com/dvloznov/statement-ledger/internal/statementtext"
)

// Input formats.
const (
	formatAuto     = "auto"
	formatText     = "text"
	formatEntities = "entities"
)

// inputFlags select and interpret the statement a command reads.
type inputFlags struct {
	format string
	bank   string
	year   int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", formatAuto, "input format: auto, text or entities")
	cmd.Flags().StringVar(&f.bank, "bank", "", "source bank recorded on text statements")
	cmd.Flags().IntVar(&f.year, "year", 0, "year for dates printed without one (default: current year)")
}

func (f *inputFlags) now() func() time.Time {
	if f.year == 0 {
		return time.Now
	}
	year := f.year
	return func() time.Time {
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("readInput: stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readInput: %w", err)
	}
	return data, nil
}

// resolveFormat picks the format for auto: a .json file or a body starting
// with "{" is an entity document.
func resolveFormat(format, path string, data []byte) (string, error) {
	switch format {
	case formatText, formatEntities:
		return format, nil
	case formatAuto, "":
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return formatEntities, nil
		}
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			return formatEntities, nil
		}
		return formatText, nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// loadTransactions reads a statement and converts it to canonical
// transactions.
func loadTransactions(cmd *cobra.Command, path string, flags inputFlags) ([]domain.Transaction, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	format, err := resolveFormat(flags.format, path, data)
	if err != nil {
		return nil, err
	}

	if format == formatEntities {
		doc, err := entities.DecodeDocument(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		n := entities.Normalizer{Now: flags.now()}
		return n.Normalize(doc), nil
	}

	parser := statementtext.New(statementtext.Options{
		Now:        flags.now(),
		SourceBank: flags.bank,
	})
	return parser.ParseTransactions(string(data)), nil
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

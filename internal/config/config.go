// Package config loads the YAML configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Ledger backends.
const (
	BackendSheets   = "sheets"
	BackendWorkbook = "workbook"
)

// CSV modes.
const (
	CSVModeSigned      = "signed"
	CSVModeDebitCredit = "debit_credit"
)

// Environment variables that override file values.
const (
	EnvLogLevel  = "LEDGER_LOG_LEVEL"
	EnvBucket    = "GCS_BUCKET"
	EnvFolderID  = "LEDGER_FOLDER_ID"
	EnvProjectID = "GOOGLE_CLOUD_PROJECT"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	CSV     CSVConfig     `yaml:"csv"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Archive ArchiveConfig `yaml:"archive"`
	Storage StorageConfig `yaml:"storage"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type CSVConfig struct {
	Mode      string `yaml:"mode"`
	Delimiter string `yaml:"delimiter"`
	BOM       bool   `yaml:"bom"`
	EmptyZero bool   `yaml:"empty_zero"`
}

type LedgerConfig struct {
	Backend     string `yaml:"backend"`
	WorkbookDir string `yaml:"workbook_dir"`
	FolderID    string `yaml:"folder_id"`
	TabName     string `yaml:"tab_name"`
	TitlePrefix string `yaml:"title_prefix"`
}

type GeminiConfig struct {
	Model string `yaml:"model"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

type StorageConfig struct {
	Bucket string `yaml:"bucket"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, applies defaults and environment overrides, and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parse config file: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.CSV.Mode == "" {
		cfg.CSV.Mode = CSVModeSigned
	}
	if cfg.CSV.Delimiter == "" {
		cfg.CSV.Delimiter = ","
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = BackendSheets
	}
	if cfg.Ledger.WorkbookDir == "" {
		cfg.Ledger.WorkbookDir = "./ledgers"
	}
	if cfg.Ledger.TitlePrefix == "" {
		cfg.Ledger.TitlePrefix = "Statement"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Archive.Dataset == "" {
		cfg.Archive.Dataset = "statement_ledger"
	}
	if cfg.Archive.Table == "" {
		cfg.Archive.Table = "transactions"
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := lookup(EnvBucket); ok && v != "" {
		cfg.Storage.Bucket = v
	}
	if v, ok := lookup(EnvFolderID); ok && v != "" {
		cfg.Ledger.FolderID = v
	}
	if v, ok := lookup(EnvProjectID); ok && v != "" {
		cfg.Archive.ProjectID = v
	}
}

// Validate checks the values a component would otherwise reject at run time.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.CSV.Mode {
	case CSVModeSigned, CSVModeDebitCredit:
	default:
		errs = append(errs, fmt.Errorf("csv.mode: unknown mode %q", c.CSV.Mode))
	}
	if _, err := c.CSV.DelimiterRune(); err != nil {
		errs = append(errs, err)
	}
	switch c.Ledger.Backend {
	case BackendSheets, BackendWorkbook:
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	if c.Archive.Enabled && c.Archive.ProjectID == "" {
		errs = append(errs, fmt.Errorf("archive.project_id: required when archive is enabled (or set %s)", EnvProjectID))
	}
	return errors.Join(errs...)
}

// DelimiterRune returns the single-character delimiter. "\t" and "tab"
// both mean a tab.
func (c CSVConfig) DelimiterRune() (rune, error) {
	d := c.Delimiter
	switch strings.ToLower(d) {
	case "tab", `\t`:
		return '\t', nil
	}
	if unq, err := strconv.Unquote(`"` + d + `"`); err == nil {
		d = unq
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("csv.delimiter: %q must be a single character", c.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("csv.delimiter: %q is not allowed", c.Delimiter)
	}
	return r, nil
}

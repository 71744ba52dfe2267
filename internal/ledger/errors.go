package ledger

import (
	"fmt"
	"strings"
)

// Kind classifies an export failure.
type Kind string

const (
	KindPrecondition       Kind = "precondition_failed"
	KindCreateFailed       Kind = "create_failed"
	KindReadFailed         Kind = "read_failed"
	KindWriteFailed        Kind = "write_failed"
	KindMoveFailedDeleted  Kind = "drive_move_failed_spreadsheet_deleted"
	KindMoveFailedRetained Kind = "drive_move_failed_spreadsheet_retained"
)

// Error is returned by Exporter.Create, Exporter.Append and by precondition
// checks. It carries
// the spreadsheet identity whenever one had been created.
type Error struct {
	Kind           Kind
	SpreadsheetID  string
	SpreadsheetURL string
	Path           []State
	Err            error

	// DeleteErr is the failed compensation for KindMoveFailedRetained.
	DeleteErr error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case KindMoveFailedDeleted:
		fmt.Fprintf(&b, ": spreadsheet %s (%s) deleted after move failure", e.SpreadsheetID, e.SpreadsheetURL)
	case KindMoveFailedRetained:
		fmt.Fprintf(&b, ": spreadsheet retained at %s after move failure", e.SpreadsheetURL)
		if e.DeleteErr != nil {
			fmt.Fprintf(&b, " (delete failed: %v)", e.DeleteErr)
		}
	default:
		switch {
		case e.SpreadsheetURL != "":
			fmt.Fprintf(&b, ": spreadsheet %s", e.SpreadsheetURL)
		case e.SpreadsheetID != "":
			fmt.Fprintf(&b, ": spreadsheet %s", e.SpreadsheetID)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func preconditionError(format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Err: fmt.Errorf(format, args...)}
}

package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// State is a step of an export.
type State string

const (
	StateIdle           State = "idle"
	StateCreating       State = "creating"
	StateWriting        State = "writing"
	StateMoving         State = "moving"
	StateDeletingOrphan State = "deleting_orphan"
	StateDone           State = "done"
	StateDeletedError   State = "deleted_error"
	StateRetainedError  State = "retained_error"
	StateFetchingHashes State = "fetching_hashes"
	StateDeduplicating  State = "deduplicating"
	StateFailed         State = "failed"
)

// CreateRequest describes a new ledger spreadsheet.
type CreateRequest struct {
	Title        string
	Transactions []domain.Transaction

	// Move places the spreadsheet into FolderID once it is written.
	Move     bool
	FolderID string
}

// CreateResult describes a created ledger.
type CreateResult struct {
	SpreadsheetID  string
	SpreadsheetURL string
	TabName        string
	Rows           int
	Moved          bool
	Path           []State
}

// AppendRequest adds transactions to an existing ledger tab.
type AppendRequest struct {
	SpreadsheetID string
	TabName       string
	Transactions  []domain.Transaction
}

// AppendResult describes an append. Appended is zero when every transaction
// was already in the ledger.
type AppendResult struct {
	SpreadsheetID string
	Appended      int
	Duplicates    int
	FirstRow      int
	Path          []State
}

// Exporter runs create and append exports against a Service. Calls are
// issued one at a time; an Exporter holds no per-export state.
type Exporter struct {
	svc Service
}

// NewExporter returns an Exporter backed by svc.
func NewExporter(svc Service) *Exporter {
	return &Exporter{svc: svc}
}

// tracker records the state path of one export and logs every transition.
type tracker struct {
	log  zerolog.Logger
	path []State
}

func newTracker(ctx context.Context, mode string) *tracker {
	t := &tracker{log: logger.FromContext(ctx).With().Str("export_mode", mode).Logger()}
	t.path = append(t.path, StateIdle)
	return t
}

func (t *tracker) to(s State) {
	from := t.path[len(t.path)-1]
	t.path = append(t.path, s)
	t.log.Debug().Str("from", string(from)).Str("to", string(s)).Msg("ledger export state")
}

func (t *tracker) snapshot() []State {
	return append([]State(nil), t.path...)
}

// Create makes a new spreadsheet holding a header row and txs, seeds the
// hidden hashes sheet, and optionally moves the file into a folder. When the
// move fails the spreadsheet is deleted so it is never left somewhere the
// caller cannot find; if that delete fails too, the returned error carries
// the live URL and no second delete is attempted.
func (e *Exporter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	txs := domain.Exportable(req.Transactions)
	switch {
	case len(txs) == 0:
		return nil, preconditionError("Create: no exportable transactions")
	case strings.TrimSpace(req.Title) == "":
		return nil, preconditionError("Create: title is required")
	case req.Move && strings.TrimSpace(req.FolderID) == "":
		return nil, preconditionError("Create: folder id is required to move the spreadsheet")
	}

	tr := newTracker(ctx, "create")
	hashes := make([]dedup.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = dedup.HashTransaction(tx)
	}

	tr.to(StateCreating)
	ss, err := e.svc.CreateSpreadsheet(ctx, req.Title)
	if err != nil {
		tr.to(StateFailed)
		return nil, &Error{Kind: KindCreateFailed, Path: tr.snapshot(), Err: fmt.Errorf("Create: create spreadsheet: %w", err)}
	}
	log := tr.log.With().Str("spreadsheet_id", ss.ID).Logger()
	tr.log = log

	tab := "Sheet1"
	if len(ss.Sheets) > 0 && ss.Sheets[0].Title != "" {
		tab = ss.Sheets[0].Title
	}

	writeFailed := func(step string, err error) error {
		tr.to(StateFailed)
		log.Error().Err(err).Str("step", step).Str("spreadsheet_url", ss.URL).Msg("ledger write failed after create")
		return &Error{
			Kind:           KindWriteFailed,
			SpreadsheetID:  ss.ID,
			SpreadsheetURL: ss.URL,
			Path:           tr.snapshot(),
			Err:            fmt.Errorf("Create: %s: %w", step, err),
		}
	}

	tr.to(StateWriting)
	rows := append([][]any{HeaderRow()}, transactionRows(txs)...)
	if err := e.svc.WriteValues(ctx, ss.ID, A1(tab, "A1"), rows); err != nil {
		return nil, writeFailed("write rows", err)
	}
	if err := e.svc.AddSheet(ctx, ss.ID, HashesSheet, true); err != nil {
		return nil, writeFailed("add hashes sheet", err)
	}
	hashValues := append([][]any{{dedup.HeaderCell}}, hashRows(hashes)...)
	if err := e.svc.WriteValues(ctx, ss.ID, A1(HashesSheet, "A1"), hashValues); err != nil {
		return nil, writeFailed("write hashes", err)
	}

	res := &CreateResult{
		SpreadsheetID:  ss.ID,
		SpreadsheetURL: ss.URL,
		TabName:        tab,
		Rows:           len(txs),
	}

	if req.Move {
		tr.to(StateMoving)
		if err := e.move(ctx, ss.ID, req.FolderID); err != nil {
			return nil, e.compensate(ctx, tr, ss, err)
		}
		res.Moved = true
	}

	tr.to(StateDone)
	res.Path = tr.snapshot()
	log.Info().Int("rows", res.Rows).Bool("moved", res.Moved).Msg("ledger created")
	return res, nil
}

func (e *Exporter) move(ctx context.Context, fileID, folderID string) error {
	parents, err := e.svc.GetParents(ctx, fileID)
	if err != nil {
		return fmt.Errorf("move: get parents: %w", err)
	}
	var remove []string
	for _, p := range parents {
		if p != folderID {
			remove = append(remove, p)
		}
	}
	if err := e.svc.UpdateParents(ctx, fileID, []string{folderID}, remove); err != nil {
		return fmt.Errorf("move: update parents: %w", err)
	}
	return nil
}

// compensate deletes a spreadsheet whose move failed. It runs at most once.
func (e *Exporter) compensate(ctx context.Context, tr *tracker, ss *Spreadsheet, moveErr error) error {
	tr.to(StateDeletingOrphan)
	tr.log.Warn().Err(moveErr).Msg("moving spreadsheet failed, deleting it")

	if delErr := e.svc.DeleteFile(ctx, ss.ID); delErr != nil {
		tr.to(StateRetainedError)
		tr.log.Error().Err(delErr).Str("spreadsheet_url", ss.URL).Msg("deleting orphaned spreadsheet failed, spreadsheet retained")
		return &Error{
			Kind:           KindMoveFailedRetained,
			SpreadsheetID:  ss.ID,
			SpreadsheetURL: ss.URL,
			Path:           tr.snapshot(),
			Err:            moveErr,
			DeleteErr:      delErr,
		}
	}

	tr.to(StateDeletedError)
	tr.log.Info().Str("spreadsheet_url", ss.URL).Msg("orphaned spreadsheet deleted")
	return &Error{
		Kind:           KindMoveFailedDeleted,
		SpreadsheetID:  ss.ID,
		SpreadsheetURL: ss.URL,
		Path:           tr.snapshot(),
		Err:            moveErr,
	}
}

// Append writes the transactions of req that the ledger does not hold yet
// below the last used row of the tab, then records their hashes. A missing
// hashes sheet means an empty ledger and is created on the way. Any other
// failure is returned as an *Error wrapping the service error; a
// KindWriteFailed after "write rows" means the rows may be in the tab
// without their hashes, so the call must not be blindly retried.
func (e *Exporter) Append(ctx context.Context, req AppendRequest) (*AppendResult, error) {
	txs := domain.Exportable(req.Transactions)
	switch {
	case len(txs) == 0:
		return nil, preconditionError("Append: no exportable transactions")
	case strings.TrimSpace(req.SpreadsheetID) == "":
		return nil, preconditionError("Append: spreadsheet id is required")
	case strings.TrimSpace(req.TabName) == "":
		return nil, preconditionError("Append: tab name is required")
	}

	tr := newTracker(ctx, "append")
	tr.log = tr.log.With().Str("spreadsheet_id", req.SpreadsheetID).Str("tab", req.TabName).Logger()
	res := &AppendResult{SpreadsheetID: req.SpreadsheetID}
	fail := func(kind Kind, err error) (*AppendResult, error) {
		tr.to(StateFailed)
		tr.log.Error().Err(err).Msg("ledger append failed")
		return nil, &Error{Kind: kind, SpreadsheetID: req.SpreadsheetID, Path: tr.snapshot(), Err: err}
	}

	tr.to(StateFetchingHashes)
	hashCells, sheetExists, err := e.existingHashes(ctx, req.SpreadsheetID)
	if err != nil {
		return fail(KindReadFailed, fmt.Errorf("Append: read hashes: %w", err))
	}

	tr.to(StateDeduplicating)
	filtered := dedup.FilterDuplicates(txs, dedup.HashSet(hashCells))
	res.Duplicates = filtered.DuplicateCount
	tr.log.Info().
		Int("incoming", len(txs)).
		Int("unique", len(filtered.Unique)).
		Int("duplicates", filtered.DuplicateCount).
		Msg("deduplicated against ledger")

	if len(filtered.Unique) == 0 {
		tr.to(StateDone)
		res.Path = tr.snapshot()
		return res, nil
	}

	tr.to(StateWriting)
	used, err := e.svc.ReadValues(ctx, req.SpreadsheetID, A1(req.TabName, "A:A"))
	if err != nil {
		return fail(KindReadFailed, fmt.Errorf("Append: read tab: %w", err))
	}
	rows := transactionRows(filtered.Unique)
	start := len(used) + 1
	if len(used) == 0 {
		rows = append([][]any{HeaderRow()}, rows...)
	}
	if err := e.svc.WriteValues(ctx, req.SpreadsheetID, A1(req.TabName, fmt.Sprintf("A%d", start)), rows); err != nil {
		return fail(KindWriteFailed, fmt.Errorf("Append: write rows: %w", err))
	}

	hashValues := hashRows(filtered.NewHashes)
	if !sheetExists {
		if err := e.svc.AddSheet(ctx, req.SpreadsheetID, HashesSheet, true); err != nil {
			return fail(KindWriteFailed, fmt.Errorf("Append: add hashes sheet: %w", err))
		}
	}
	hashStart := len(hashCells) + 1
	if len(hashCells) == 0 {
		hashValues = append([][]any{{dedup.HeaderCell}}, hashValues...)
	}
	if err := e.svc.WriteValues(ctx, req.SpreadsheetID, A1(HashesSheet, fmt.Sprintf("A%d", hashStart)), hashValues); err != nil {
		return fail(KindWriteFailed, fmt.Errorf("Append: write hashes: %w", err))
	}

	tr.to(StateDone)
	res.Appended = len(filtered.Unique)
	res.FirstRow = start
	if len(used) == 0 {
		res.FirstRow = start + 1
	}
	res.Path = tr.snapshot()
	tr.log.Info().Int("appended", res.Appended).Int("first_row", res.FirstRow).Msg("ledger appended")
	return res, nil
}

// existingHashes reads the hashes column. exists is false when the sheet is
// absent.
func (e *Exporter) existingHashes(ctx context.Context, spreadsheetID string) (cells []string, exists bool, err error) {
	values, err := e.svc.ReadValues(ctx, spreadsheetID, HashesSheet+"!A:A")
	if err != nil {
		if IsSheetMissing(err) {
			log := logger.FromContext(ctx)
			log.Debug().Err(err).Msg("hashes sheet absent, treating ledger as empty")
			return nil, false, nil
		}
		return nil, false, err
	}
	return cellStrings(values), true, nil
}

package pipeline

// Default values for statement ingestion.
const (
	// DefaultTitlePrefix prefixes the title of a newly created ledger.
	DefaultTitlePrefix = "Statement"

	// DefaultTabName is the tab appended to when none is configured. It is
	// the first tab of a newly created ledger.
	DefaultTabName = "Sheet1"

	// SourceEntities and SourceText record which route produced the
	// transactions.
	SourceEntities = "entities"
	SourceText     = "text"
)

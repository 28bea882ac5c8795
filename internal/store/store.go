package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/migrate-cli/internal/model"
	"github.com/sells-group/migrate-cli/internal/refindex"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status      model.RunStatus `json:"status,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for migration runs, their output,
// and the reference index feeds.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, contentType string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Output
	SaveEntries(ctx context.Context, runID, contentType, locale string, entries []model.DestinationEntry) error
	ListEntries(ctx context.Context, runID, locale string) ([]model.DestinationEntry, error)
	RecordSkip(ctx context.Context, runID string, skip model.Skip) error
	ListSkips(ctx context.Context, runID string) ([]model.Skip, error)

	// Reference index feeds
	PutAssets(ctx context.Context, rows []refindex.AssetRow) error
	PutEntryRefs(ctx context.Context, rows []refindex.EntryRow) error
	PutTerms(ctx context.Context, rows []refindex.TermRow) error
	refindex.Source

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

// encodeEntry renders an entry in its destination wire shape.
func encodeEntry(e model.DestinationEntry) ([]byte, error) {
	b, err := json.Marshal(e)
	return b, eris.Wrapf(err, "store: marshal entry %s", e.UID)
}

func decodeEntry(body []byte, contentType, legacyID string) (model.DestinationEntry, error) {
	var e model.DestinationEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return e, eris.Wrap(err, "store: unmarshal entry")
	}
	e.ContentType = contentType
	e.LegacyID = legacyID
	return e, nil
}

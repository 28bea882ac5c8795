package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/migrate-cli/internal/model"
)

// --- Sink Mock ---

type mockSink struct {
	mock.Mock
}

func (m *mockSink) CreateRun(ctx context.Context, contentType string) (*model.Run, error) {
	args := m.Called(ctx, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockSink) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error {
	args := m.Called(ctx, runID, status, stats)
	return args.Error(0)
}

func (m *mockSink) SaveEntries(ctx context.Context, runID, contentType, locale string, entries []model.DestinationEntry) error {
	args := m.Called(ctx, runID, contentType, locale, entries)
	return args.Error(0)
}

func (m *mockSink) RecordSkip(ctx context.Context, runID string, skip model.Skip) error {
	args := m.Called(ctx, runID, skip)
	return args.Error(0)
}

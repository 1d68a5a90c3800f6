package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsentinel/logsentinel/internal/analyzer"
	"github.com/logsentinel/logsentinel/internal/config"
	"github.com/logsentinel/logsentinel/internal/domain"
	"github.com/logsentinel/logsentinel/internal/repository"
)

type fakeStore struct {
	mu          sync.Mutex
	rawLogs     []repository.RawLog
	summaries   []domain.BatchSummary
	items       []domain.AnalysisResultItem
	failSummary error
	failItems   error
}

func (f *fakeStore) SaveRawLogBatch(_ context.Context, logs []repository.RawLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawLogs = append(f.rawLogs, logs...)
	return nil
}

func (f *fakeStore) SaveBatchSummary(_ context.Context, summary domain.BatchSummary) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary != nil {
		return 0, f.failSummary
	}
	f.summaries = append(f.summaries, summary)
	return int64(len(f.summaries)), nil
}

func (f *fakeStore) SaveAnalysisResultBatch(_ context.Context, items []domain.AnalysisResultItem, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failItems != nil {
		return f.failItems
	}
	f.items = append(f.items, items...)
	return nil
}

func testSnapshot() *config.SystemConfig {
	return config.NewSystemConfig(
		config.AppConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"},
		[]config.PromptConfig{{ID: 1, Name: "m", Content: "map-prompt", IsActive: true}},
		[]config.PromptConfig{{ID: 1, Name: "r", Content: "reduce-prompt", IsActive: true}},
		nil,
	)
}

func TestProcessor_SuccessfulBatch(t *testing.T) {
	store := &fakeStore{}
	stub := &analyzer.Stub{
		ClassifyFunc: func(in analyzer.LogInput) domain.LogAnalysisResult {
			return domain.LogAnalysisResult{Summary: "classified", RiskLevel: domain.RiskWarning}
		},
	}
	p := New(stub, store, nil, nil)

	snapshot := testSnapshot()
	batch := []domain.AnalysisTask{
		{TraceID: "t1", Body: "line1", Start: time.Now(), Config: snapshot},
		{TraceID: "t2", Body: "line2", Start: time.Now(), Config: snapshot},
	}

	p.Process(t.Context(), batch)

	require.Len(t, store.rawLogs, 2)
	require.Len(t, store.items, 2)
	require.Len(t, store.summaries, 1)
	assert.Equal(t, domain.StatusSuccess, store.items[0].Status)
	assert.Equal(t, 2, store.summaries[0].TotalLogs)
}

func TestProcessor_MapFailureIsolation(t *testing.T) {
	store := &fakeStore{}
	stub := &analyzer.Stub{FailAnalyze: errors.New("analyzer unreachable")}
	p := New(stub, store, nil, nil)

	snapshot := testSnapshot()
	batch := []domain.AnalysisTask{
		{TraceID: "t1", Body: "a", Start: time.Now(), Config: snapshot},
		{TraceID: "t2", Body: "b", Start: time.Now(), Config: snapshot},
		{TraceID: "t3", Body: "c", Start: time.Now(), Config: snapshot},
	}

	p.Process(t.Context(), batch)

	require.Len(t, store.items, 3)
	for _, item := range store.items {
		assert.Equal(t, domain.StatusFailure, item.Status)
		assert.Equal(t, domain.RiskUnknown, item.Result.RiskLevel)
	}
	require.Len(t, store.summaries, 1, "a batch_summaries row must still be written on map failure")
}

func TestProcessor_EmptyTraceIDSkipped(t *testing.T) {
	store := &fakeStore{}
	stub := &analyzer.Stub{}
	p := New(stub, store, nil, nil)

	snapshot := testSnapshot()
	batch := []domain.AnalysisTask{
		{TraceID: "", Body: "skip me", Start: time.Now(), Config: snapshot},
		{TraceID: "t1", Body: "keep me", Start: time.Now(), Config: snapshot},
	}

	p.Process(t.Context(), batch)

	require.Len(t, store.rawLogs, 1)
	assert.Equal(t, "t1", store.rawLogs[0].TraceID)
}

func TestProcessor_EmptyBatchIsNoOp(t *testing.T) {
	store := &fakeStore{}
	p := New(&analyzer.Stub{}, store, nil, nil)
	p.Process(t.Context(), nil)
	assert.Empty(t, store.rawLogs)
	assert.Empty(t, store.summaries)
}

func TestProcessor_ReduceFailureUsesPlaceholder(t *testing.T) {
	store := &fakeStore{}
	stub := &analyzer.Stub{FailSummary: errors.New("reduce unreachable")}
	p := New(stub, store, nil, nil)

	snapshot := testSnapshot()
	batch := []domain.AnalysisTask{{TraceID: "t1", Body: "a", Start: time.Now(), Config: snapshot}}

	p.Process(t.Context(), batch)

	require.Len(t, store.summaries, 1)
	assert.Equal(t, "summary unavailable", store.summaries[0].GlobalSummary)
	assert.Equal(t, domain.RiskUnknown, store.summaries[0].GlobalRiskLevel)
}

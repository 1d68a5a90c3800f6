package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/logsentinel/logsentinel/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := Open(t.Context(), db, nil)
	require.NoError(t, err)
	return repo
}

func TestRepository_SaveAndQueryResultByTraceID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := t.Context()

	require.NoError(t, repo.SaveRawLogBatch(ctx, []RawLog{{TraceID: "t1", Body: "oom"}}))
	batchID, err := repo.SaveBatchSummary(ctx, domain.BatchSummary{GlobalSummary: "s", GlobalRiskLevel: domain.RiskCritical, KeyPatterns: "[]", TotalLogs: 1})
	require.NoError(t, err)

	items := []domain.AnalysisResultItem{
		{TraceID: "t1", Status: domain.StatusSuccess, Result: domain.LogAnalysisResult{Summary: "bad", RiskLevel: domain.RiskCritical}, ResponseTimeMicros: 5000},
	}
	require.NoError(t, repo.SaveAnalysisResultBatch(ctx, items, batchID))

	result, err := repo.QueryResultByTraceID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskCritical, result.RiskLevel)
	assert.Equal(t, "bad", result.Summary)

	stats := repo.GetDashboardStats()
	assert.EqualValues(t, 1, stats.TotalLogs)
	assert.EqualValues(t, 1, stats.CountCritical)
	require.Len(t, stats.RecentAlerts, 1)
	assert.Equal(t, "t1", stats.RecentAlerts[0].TraceID)
}

func TestRepository_QueryResultByTraceID_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.QueryResultByTraceID(t.Context(), "missing")
	require.Error(t, err)
}

func TestRepository_GetHistoricalLogs_FilterByLevel(t *testing.T) {
	repo := newTestRepo(t)
	ctx := t.Context()

	require.NoError(t, repo.SaveRawLogBatch(ctx, []RawLog{{TraceID: "c1", Body: "x"}, {TraceID: "w1", Body: "y"}, {TraceID: "i1", Body: "z"}}))
	batchID, err := repo.SaveBatchSummary(ctx, domain.BatchSummary{GlobalSummary: "s", GlobalRiskLevel: domain.RiskWarning, KeyPatterns: "[]", TotalLogs: 3})
	require.NoError(t, err)

	items := []domain.AnalysisResultItem{
		{TraceID: "c1", Status: domain.StatusSuccess, Result: domain.LogAnalysisResult{RiskLevel: domain.RiskCritical, Summary: "crit"}},
		{TraceID: "w1", Status: domain.StatusSuccess, Result: domain.LogAnalysisResult{RiskLevel: domain.RiskWarning, Summary: "warn"}},
		{TraceID: "i1", Status: domain.StatusSuccess, Result: domain.LogAnalysisResult{RiskLevel: domain.RiskInfo, Summary: "info"}},
	}
	require.NoError(t, repo.SaveAnalysisResultBatch(ctx, items, batchID))

	page, err := repo.GetHistoricalLogs(ctx, 1, 10, "critical", "")
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, "c1", page.Logs[0].TraceID)

	page, err = repo.GetHistoricalLogs(ctx, 1, 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 10, ClampPageSize(0))
	assert.Equal(t, 100, ClampPageSize(500))
	assert.Equal(t, 1, ClampPageSize(-5))
	assert.Equal(t, 42, ClampPageSize(42))
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(0))
	assert.Equal(t, 1, ClampPage(-3))
	assert.Equal(t, 5, ClampPage(5))
}

func TestRepository_RebuildStatsFromDB(t *testing.T) {
	repo := newTestRepo(t)
	ctx := t.Context()

	require.NoError(t, repo.SaveRawLogBatch(ctx, []RawLog{{TraceID: "t1", Body: "x"}}))
	batchID, err := repo.SaveBatchSummary(ctx, domain.BatchSummary{GlobalSummary: "s", GlobalRiskLevel: domain.RiskCritical, KeyPatterns: "[]", TotalLogs: 1, CountCritical: 1})
	require.NoError(t, err)
	require.NoError(t, repo.SaveAnalysisResultBatch(ctx, []domain.AnalysisResultItem{
		{TraceID: "t1", Status: domain.StatusSuccess, Result: domain.LogAnalysisResult{RiskLevel: domain.RiskCritical, Summary: "bad"}, ResponseTimeMicros: 2000},
	}, batchID))

	require.NoError(t, repo.RebuildStatsFromDB(ctx))

	stats := repo.GetDashboardStats()
	assert.EqualValues(t, 1, stats.TotalLogs)
	assert.EqualValues(t, 1, stats.CountCritical)
	require.Len(t, stats.RecentAlerts, 1)
}

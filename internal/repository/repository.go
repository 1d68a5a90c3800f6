// Package repository is the Log Repository (C2): the persistent store for
// raw logs, analysis results and batch summaries, plus the in-memory
// dashboard snapshot that serves GET /dashboard without touching SQL.
// Adapted from the corpus's sqlite-backed storage layer: WAL journaling,
// one mutex serializing all SQL access, a separate mutex guarding the
// snapshot pointer.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// Repository owns the database handle and the dashboard snapshot pointer.
type Repository struct {
	db *sql.DB

	sqlMu sync.Mutex

	snapMu sync.Mutex
	snap   *domain.DashboardStats

	cache *Cache
}

// Open takes an already-opened database handle (the caller chooses the
// file and its journaling mode), creates the repository's tables and index
// if absent, and rebuilds the dashboard snapshot from existing rows before
// returning.
func Open(ctx context.Context, db *sql.DB, cache *Cache) (*Repository, error) {
	r := &Repository{db: db, snap: &domain.DashboardStats{}, cache: cache}

	if err := r.ensureSchema(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStartup, fmt.Sprintf("repository schema: %v", err))
	}
	if err := r.RebuildStatsFromDB(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStartup, fmt.Sprintf("rebuild dashboard: %v", err))
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT UNIQUE NOT NULL,
			log_content TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			global_summary TEXT NOT NULL,
			global_risk_level TEXT NOT NULL,
			key_patterns TEXT NOT NULL DEFAULT '[]',
			total_logs INTEGER NOT NULL,
			cnt_critical INTEGER NOT NULL DEFAULT 0,
			cnt_error INTEGER NOT NULL DEFAULT 0,
			cnt_warning INTEGER NOT NULL DEFAULT 0,
			cnt_info INTEGER NOT NULL DEFAULT 0,
			cnt_safe INTEGER NOT NULL DEFAULT 0,
			cnt_unknown INTEGER NOT NULL DEFAULT 0,
			processing_time_ms INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT UNIQUE NOT NULL,
			batch_id INTEGER NOT NULL REFERENCES batch_summaries(id),
			status TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			summary TEXT NOT NULL,
			root_cause TEXT NOT NULL,
			solution TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL,
			processed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_results_processed_at ON analysis_results(processed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RawLog is one input to SaveRawLogBatch.
type RawLog struct {
	TraceID string
	Body    string
}

// SaveRawLogBatch persists every raw log in one transaction via a single
// prepared statement. The trace_id UNIQUE constraint is authoritative: a
// duplicate fails that row's execution and the whole transaction rolls
// back, since a duplicate trace-id indicates a generator contract
// violation rather than an expected race.
func (r *Repository) SaveRawLogBatch(ctx context.Context, logs []RawLog) error {
	if len(logs) == 0 {
		return nil
	}

	r.sqlMu.Lock()
	defer r.sqlMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_logs(trace_id, log_content, received_at) VALUES (?, ?, ?)`)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer stmt.Close()

	now := time.Now()
	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx, l.TraceID, l.Body, now); err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return nil
}

// SaveBatchSummary inserts one batch_summaries row and returns its id.
func (r *Repository) SaveBatchSummary(ctx context.Context, summary domain.BatchSummary) (int64, error) {
	r.sqlMu.Lock()
	defer r.sqlMu.Unlock()

	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO batch_summaries(global_summary, global_risk_level, key_patterns, total_logs,
			cnt_critical, cnt_error, cnt_warning, cnt_info, cnt_safe, cnt_unknown, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.GlobalSummary, string(summary.GlobalRiskLevel), summary.KeyPatterns, summary.TotalLogs,
		summary.CountCritical, summary.CountError, summary.CountWarning, summary.CountInfo, summary.CountSafe, summary.CountUnknown,
		summary.ProcessingTimeMs, now)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return res.LastInsertId()
}

// SaveAnalysisResultBatch persists one batch's per-item outcomes in one
// transaction, then updates the dashboard snapshot on success.
func (r *Repository) SaveAnalysisResultBatch(ctx context.Context, items []domain.AnalysisResultItem, batchID int64) error {
	if len(items) == 0 {
		return nil
	}

	r.sqlMu.Lock()
	err := func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO analysis_results
			(trace_id, batch_id, status, risk_level, summary, root_cause, solution, response_time_ms, processed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
		defer stmt.Close()

		now := time.Now()
		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.TraceID, batchID, string(item.Status), string(item.Result.RiskLevel),
				item.Result.Summary, item.Result.RootCause, item.Result.Solution, item.ResponseTimeMicros/1000, now); err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
			}
		}

		if err := tx.Commit(); err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
		return nil
	}()
	r.sqlMu.Unlock()

	if err != nil {
		return err
	}

	r.updateSnapshot(func(s *domain.DashboardStats) { s.ApplyBatch(items) })
	if r.cache != nil {
		for _, item := range items {
			r.cache.Invalidate(item.TraceID)
		}
	}
	return nil
}

// UpdateRealtimeMetrics copy-on-write updates the two live gauges without
// touching the per-risk counters or recent alerts.
func (r *Repository) UpdateRealtimeMetrics(qps, backpressure float64) {
	r.updateSnapshot(func(s *domain.DashboardStats) {
		s.LiveQPS = qps
		s.LiveBackpressure = backpressure
	})
}

func (r *Repository) updateSnapshot(mutate func(*domain.DashboardStats)) {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	next := r.snap.Clone()
	mutate(next)
	r.snap = next
}

// GetDashboardStats returns the current snapshot by value; O(1), no SQL.
func (r *Repository) GetDashboardStats() domain.DashboardStats {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	return *r.snap
}

// QueryResultByTraceID returns the stored LogAnalysisResult for trace_id,
// or apperrors.ErrNotFound if no row exists. Consults the two-level cache
// before touching SQL.
func (r *Repository) QueryResultByTraceID(ctx context.Context, traceID string) (domain.LogAnalysisResult, error) {
	if r.cache != nil {
		if result, ok := r.cache.Get(ctx, traceID); ok {
			return result, nil
		}
	}

	r.sqlMu.Lock()
	row := r.db.QueryRowContext(ctx,
		`SELECT summary, risk_level, root_cause, solution FROM analysis_results WHERE trace_id = ?`, traceID)
	var result domain.LogAnalysisResult
	var risk string
	err := row.Scan(&result.Summary, &risk, &result.RootCause, &result.Solution)
	r.sqlMu.Unlock()

	if err == sql.ErrNoRows {
		return domain.LogAnalysisResult{}, apperrors.Wrap(apperrors.ErrNotFound, "trace_id not found: "+traceID)
	}
	if err != nil {
		return domain.LogAnalysisResult{}, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	result.RiskLevel = domain.ParseRiskLevel(risk)

	if r.cache != nil {
		r.cache.Set(ctx, traceID, result)
	}
	return result, nil
}

// RebuildStatsFromDB aggregates counters from batch_summaries and loads
// the last 5 critical alerts from analysis_results, seeding the dashboard
// snapshot at startup so a restart does not reset the visible totals.
func (r *Repository) RebuildStatsFromDB(ctx context.Context) error {
	r.sqlMu.Lock()
	defer r.sqlMu.Unlock()

	stats := &domain.DashboardStats{}

	row := r.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(total_logs),0), COALESCE(SUM(cnt_critical),0), COALESCE(SUM(cnt_error),0),
		COALESCE(SUM(cnt_warning),0), COALESCE(SUM(cnt_info),0), COALESCE(SUM(cnt_safe),0),
		COALESCE(SUM(cnt_unknown),0)
		FROM batch_summaries`)
	if err := row.Scan(&stats.TotalLogs, &stats.CountCritical, &stats.CountError,
		&stats.CountWarning, &stats.CountInfo, &stats.CountSafe, &stats.CountUnknown); err != nil {
		return err
	}

	var sumMs, count int64
	avgRow := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(response_time_ms),0), COUNT(*) FROM analysis_results`)
	if err := avgRow.Scan(&sumMs, &count); err != nil {
		return err
	}
	stats.SeedAverage(sumMs, count)

	rows, err := r.db.QueryContext(ctx,
		`SELECT trace_id, summary, risk_level, processed_at FROM analysis_results
		 WHERE risk_level = ? ORDER BY processed_at DESC LIMIT ?`, string(domain.RiskCritical), domain.MaxRecentAlerts)
	if err != nil {
		return err
	}
	defer rows.Close()

	var alerts []domain.AlertEntry
	for rows.Next() {
		var entry domain.AlertEntry
		var risk string
		if err := rows.Scan(&entry.TraceID, &entry.Summary, &risk, &entry.At); err != nil {
			return err
		}
		entry.RiskLevel = domain.ParseRiskLevel(risk)
		alerts = append(alerts, entry)
	}
	stats.RecentAlerts = alerts

	r.snapMu.Lock()
	r.snap = stats
	r.snapMu.Unlock()
	return nil
}

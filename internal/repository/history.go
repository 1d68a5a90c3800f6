package repository

import (
	"context"
	"strings"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// ClampPage clamps a requested page number to >= 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize clamps a requested page size into [1,100], treating 0 as
// "unspecified" and defaulting it to 10.
func ClampPageSize(pageSize int) int {
	if pageSize == 0 {
		return 10
	}
	if pageSize < 1 {
		return 1
	}
	if pageSize > 100 {
		return 100
	}
	return pageSize
}

// GetHistoricalLogs runs the count+page query pair over analysis_results
// with a composable WHERE clause: case-insensitive level match and a
// LIKE %keyword% match over summary and trace_id.
func (r *Repository) GetHistoricalLogs(ctx context.Context, page, pageSize int, level, keyword string) (domain.HistoryPage, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	var clauses []string
	var args []any

	if level != "" {
		clauses = append(clauses, "LOWER(risk_level) = LOWER(?)")
		args = append(args, level)
	}
	if keyword != "" {
		clauses = append(clauses, "(summary LIKE ? OR trace_id LIKE ?)")
		like := "%" + keyword + "%"
		args = append(args, like, like)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	r.sqlMu.Lock()
	defer r.sqlMu.Unlock()

	var total int
	countQuery := "SELECT COUNT(*) FROM analysis_results " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return domain.HistoryPage{}, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}

	pageQuery := `SELECT trace_id, status, risk_level, summary, root_cause, solution, response_time_ms, processed_at
		FROM analysis_results ` + where + ` ORDER BY processed_at DESC LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return domain.HistoryPage{}, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var risk string
		if err := rows.Scan(&e.TraceID, &e.Status, &risk, &e.Summary, &e.RootCause, &e.Solution, &e.ResponseTimeMs, &e.ProcessedAt); err != nil {
			return domain.HistoryPage{}, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
		e.RiskLevel = domain.ParseRiskLevel(risk)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.HistoryPage{}, apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}

	return domain.HistoryPage{Logs: entries, TotalCount: total}, nil
}

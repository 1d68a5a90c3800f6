package domain

import (
	"time"

	"github.com/logsentinel/logsentinel/internal/config"
)

// AnalysisStatus is the terminal state of one task's analysis outcome.
type AnalysisStatus string

const (
	StatusSuccess AnalysisStatus = "SUCCESS"
	StatusFailure AnalysisStatus = "FAILURE"
)

// LogAnalysisResult is the structured outcome of classifying a single log.
type LogAnalysisResult struct {
	Summary   string    `json:"summary"`
	RiskLevel RiskLevel `json:"risk_level"`
	RootCause string    `json:"root_cause"`
	Solution  string    `json:"solution"`
}

// AnalysisTask is one in-flight ingest request. It is created by the ingest
// handler, owned exclusively by the batcher until dispatched, then owned
// exclusively by one batch processor goroutine until persisted.
type AnalysisTask struct {
	TraceID string
	Body    string
	Start   time.Time
	Config  *config.SystemConfig // frozen reference taken at enqueue time
}

// AnalysisResultItem is the per-log outcome produced at the end of a batch.
type AnalysisResultItem struct {
	TraceID          string
	Result           LogAnalysisResult
	ResponseTimeMicros int64
	Status           AnalysisStatus
}

// BatchSummary is the cross-batch narrative produced by the Reduce step.
type BatchSummary struct {
	ID                int64
	GlobalSummary     string
	GlobalRiskLevel   RiskLevel
	KeyPatterns       string // serialized JSON array
	CountCritical     int
	CountError        int
	CountWarning      int
	CountInfo         int
	CountSafe         int
	CountUnknown      int
	TotalLogs         int
	ProcessingTimeMs  int64
	CreatedAt         time.Time
}

// CountFor returns the counter slot for a given risk level, by pointer so
// callers can increment it in place.
func (b *BatchSummary) CountFor(level RiskLevel) *int {
	switch level {
	case RiskCritical:
		return &b.CountCritical
	case RiskError:
		return &b.CountError
	case RiskWarning:
		return &b.CountWarning
	case RiskInfo:
		return &b.CountInfo
	case RiskSafe:
		return &b.CountSafe
	default:
		return &b.CountUnknown
	}
}

// HistoryEntry is a single row from analysis_results as surfaced by the
// paginated history query.
type HistoryEntry struct {
	TraceID        string    `json:"trace_id"`
	Status         string    `json:"status"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Summary        string    `json:"summary"`
	RootCause      string    `json:"root_cause"`
	Solution       string    `json:"solution"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// HistoryPage is the result of a paginated history query.
type HistoryPage struct {
	Logs       []HistoryEntry `json:"logs"`
	TotalCount int            `json:"total_count"`
}

// AlertEntry is one entry in the dashboard's bounded recent-alerts list.
type AlertEntry struct {
	TraceID   string    `json:"trace_id"`
	Summary   string    `json:"summary"`
	RiskLevel RiskLevel `json:"risk_level"`
	At        time.Time `json:"at"`
}

// MaxRecentAlerts bounds DashboardStats.RecentAlerts.
const MaxRecentAlerts = 5

// DashboardStats is the in-memory, eventually-consistent snapshot served
// by GET /dashboard. Counters are monotonically non-decreasing across
// successive observations; RecentAlerts is newest-first and bounded.
type DashboardStats struct {
	TotalLogs         int64        `json:"total_logs"`
	CountCritical     int64        `json:"count_critical"`
	CountError        int64        `json:"count_error"`
	CountWarning      int64        `json:"count_warning"`
	CountInfo         int64        `json:"count_info"`
	CountSafe         int64        `json:"count_safe"`
	CountUnknown      int64        `json:"count_unknown"`
	RecentAlerts      []AlertEntry `json:"recent_alerts"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	LiveQPS           float64      `json:"live_qps"`
	LiveBackpressure  float64      `json:"live_backpressure"`

	// internal running sum of response times backing AvgResponseTimeMs;
	// not exported in JSON, kept so the average can be extended online.
	sumResponseTimeMs int64 `json:"-"`
	countForAvg       int64 `json:"-"`
}

// Clone returns a deep copy suitable for copy-on-write publication.
func (d *DashboardStats) Clone() *DashboardStats {
	c := *d
	c.RecentAlerts = append([]AlertEntry(nil), d.RecentAlerts...)
	return &c
}

// ApplyBatch folds one batch's items into the snapshot: accumulates
// counters, updates the running response-time average, and prepends any
// critical items to RecentAlerts (truncated to MaxRecentAlerts).
func (d *DashboardStats) ApplyBatch(items []AnalysisResultItem) {
	for _, item := range items {
		d.TotalLogs++
		switch item.Result.RiskLevel {
		case RiskCritical:
			d.CountCritical++
		case RiskError:
			d.CountError++
		case RiskWarning:
			d.CountWarning++
		case RiskInfo:
			d.CountInfo++
		case RiskSafe:
			d.CountSafe++
		default:
			d.CountUnknown++
		}

		d.sumResponseTimeMs += item.ResponseTimeMicros / 1000
		d.countForAvg++
		if d.countForAvg > 0 {
			d.AvgResponseTimeMs = float64(d.sumResponseTimeMs) / float64(d.countForAvg)
		}

		if item.Result.RiskLevel == RiskCritical {
			entry := AlertEntry{
				TraceID:   item.TraceID,
				Summary:   item.Result.Summary,
				RiskLevel: item.Result.RiskLevel,
				At:        time.Now(),
			}
			d.RecentAlerts = append([]AlertEntry{entry}, d.RecentAlerts...)
			if len(d.RecentAlerts) > MaxRecentAlerts {
				d.RecentAlerts = d.RecentAlerts[:MaxRecentAlerts]
			}
		}
	}
}

// SeedAverage primes the running average from a historical sum/count pair,
// used by rebuild-from-db at startup.
func (d *DashboardStats) SeedAverage(sumMs, count int64) {
	d.sumResponseTimeMs = sumMs
	d.countForAvg = count
	if count > 0 {
		d.AvgResponseTimeMs = float64(sumMs) / float64(count)
	}
}

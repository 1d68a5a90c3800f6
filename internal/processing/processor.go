// Package processing implements the Batch Processor (C6): the Map then
// Reduce orchestration that turns one dispatched batch of AnalysisTasks
// into persisted results and an updated dashboard snapshot.
package processing

import (
	"context"
	"log/slog"
	"time"

	"github.com/logsentinel/logsentinel/internal/analyzer"
	"github.com/logsentinel/logsentinel/internal/config"
	"github.com/logsentinel/logsentinel/internal/domain"
	"github.com/logsentinel/logsentinel/internal/notifier"
	"github.com/logsentinel/logsentinel/internal/repository"
)

const missingAnalysisSummary = "AI analysis missing"

// Store is the subset of Repository the processor depends on, so tests
// can substitute a lighter fake without standing up SQLite.
type Store interface {
	SaveRawLogBatch(ctx context.Context, logs []repository.RawLog) error
	SaveBatchSummary(ctx context.Context, summary domain.BatchSummary) (int64, error)
	SaveAnalysisResultBatch(ctx context.Context, items []domain.AnalysisResultItem, batchID int64) error
}

// Processor runs the nine-step Map/Reduce/persist/notify flow described
// for one dispatched batch. One Processor is shared by every worker pool
// goroutine; it holds no per-batch state itself.
type Processor struct {
	analyzer analyzer.Analyzer
	store    Store
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// New builds a Processor. notify may be nil to skip the final step
// entirely (e.g. in tests focused on persistence behavior).
func New(a analyzer.Analyzer, store Store, notify *notifier.Notifier, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{analyzer: a, store: store, notifier: notify, logger: logger}
}

// Process runs the full pipeline for one batch. Any step failure is
// logged and the batch is abandoned from that point on: raw logs may
// already be committed even if results are not, matching the documented
// failure semantics (a batch's persistence is not all-or-nothing across
// its sub-steps, only within each sub-step's own transaction).
func (p *Processor) Process(ctx context.Context, batch []domain.AnalysisTask) {
	if len(batch) == 0 {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("batch processor panicked, batch abandoned", "panic", r)
		}
	}()

	snapshot := batch[0].Config

	tasks := make([]domain.AnalysisTask, 0, len(batch))
	for _, t := range batch {
		if t.TraceID == "" {
			p.logger.Warn("skipping task with empty trace_id")
			continue
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return
	}

	rawLogs := make([]repository.RawLog, 0, len(tasks))
	for _, t := range tasks {
		rawLogs = append(rawLogs, repository.RawLog{TraceID: t.TraceID, Body: t.Body})
	}
	if err := p.store.SaveRawLogBatch(ctx, rawLogs); err != nil {
		p.logger.Error("failed to save raw log batch, abandoning batch", "error", err)
		return
	}

	mapResults := p.runMap(ctx, snapshot, tasks)

	items := assembleItems(tasks, mapResults)

	summary := p.runReduce(ctx, snapshot, items)
	tallyCounts(&summary, items)
	summary.TotalLogs = len(items)
	summary.ProcessingTimeMs = time.Since(earliestStart(tasks)).Milliseconds()

	batchID, err := p.store.SaveBatchSummary(ctx, summary)
	if err != nil {
		p.logger.Error("failed to save batch summary, abandoning batch", "error", err)
		return
	}

	if err := p.store.SaveAnalysisResultBatch(ctx, items, batchID); err != nil {
		p.logger.Error("failed to save analysis result batch", "error", err, "batch_id", batchID)
		return
	}

	if p.notifier != nil && snapshot != nil {
		p.notifier.Dispatch(snapshot.Channels, summary)
	}
}

func (p *Processor) runMap(ctx context.Context, snapshot *config.SystemConfig, tasks []domain.AnalysisTask) map[string]domain.LogAnalysisResult {
	if snapshot == nil {
		return nil
	}

	inputs := make([]analyzer.LogInput, 0, len(tasks))
	for _, t := range tasks {
		inputs = append(inputs, analyzer.LogInput{TraceID: t.TraceID, Line: t.Body})
	}

	results, err := p.analyzer.AnalyzeBatch(ctx, snapshot.App.Provider, snapshot.App.Model, snapshot.App.APIKey, snapshot.ActiveMapPrompt, inputs)
	if err != nil {
		p.logger.Warn("map phase failed, tasks will be marked FAILURE", "error", err)
		return nil
	}

	out := make(map[string]domain.LogAnalysisResult, len(results))
	for _, r := range results {
		out[r.TraceID] = r.Result
	}
	return out
}

func assembleItems(tasks []domain.AnalysisTask, mapResults map[string]domain.LogAnalysisResult) []domain.AnalysisResultItem {
	items := make([]domain.AnalysisResultItem, 0, len(tasks))
	for _, t := range tasks {
		responseTime := time.Since(t.Start).Microseconds()
		if result, ok := mapResults[t.TraceID]; ok {
			items = append(items, domain.AnalysisResultItem{
				TraceID:            t.TraceID,
				Result:             result,
				ResponseTimeMicros: responseTime,
				Status:             domain.StatusSuccess,
			})
		} else {
			items = append(items, domain.AnalysisResultItem{
				TraceID: t.TraceID,
				Result: domain.LogAnalysisResult{
					Summary:   missingAnalysisSummary,
					RiskLevel: domain.RiskUnknown,
				},
				ResponseTimeMicros: responseTime,
				Status:             domain.StatusFailure,
			})
		}
	}
	return items
}

func (p *Processor) runReduce(ctx context.Context, snapshot *config.SystemConfig, items []domain.AnalysisResultItem) domain.BatchSummary {
	successInputs := make([]analyzer.ReduceInput, 0, len(items))
	for _, item := range items {
		if item.Status != domain.StatusSuccess {
			continue
		}
		successInputs = append(successInputs, analyzer.ReduceInput{
			TraceID:   item.TraceID,
			RiskLevel: item.Result.RiskLevel,
			Summary:   item.Result.Summary,
		})
	}

	if len(successInputs) == 0 || snapshot == nil {
		return domain.BatchSummary{GlobalSummary: "no successful analyses in this batch", GlobalRiskLevel: domain.RiskUnknown, KeyPatterns: "[]"}
	}

	summary, err := p.analyzer.Summarize(ctx, snapshot.App.Provider, snapshot.App.Model, snapshot.App.APIKey, snapshot.ActiveReducePrompt, successInputs)
	if err != nil {
		p.logger.Warn("reduce phase failed, using placeholder summary", "error", err)
		return domain.BatchSummary{GlobalSummary: "summary unavailable", GlobalRiskLevel: domain.RiskUnknown, KeyPatterns: "[]"}
	}
	if summary.KeyPatterns == "" {
		summary.KeyPatterns = "[]"
	}
	return summary
}

func tallyCounts(summary *domain.BatchSummary, items []domain.AnalysisResultItem) {
	for _, item := range items {
		*summary.CountFor(item.Result.RiskLevel)++
	}
}

func earliestStart(tasks []domain.AnalysisTask) time.Time {
	earliest := tasks[0].Start
	for _, t := range tasks[1:] {
		if t.Start.Before(earliest) {
			earliest = t.Start
		}
	}
	return earliest
}

package analytics

import (
	"context"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/metrics"
	"github.com/admetrica/creativescope/internal/models"
)

// DailyAggregator maintains one mutable usage_stats document per UTC calendar
// day, updated incrementally as analyses and feedback arrive. Aggregation is
// strictly best-effort: every operation swallows store failures after routing
// them to the error sink, so the primary user-facing flow is never delayed or
// aborted by analytics. A failed update is not retried; that day's rollup
// stays slightly undercounted.
//
// Counters use the store's atomic increment. The two running averages cannot:
// they need a read of the pre-increment state followed by a write, and no
// cross-operation lock is held, so two concurrent updates can read the same
// old count and one average write is lost. Known weakness, kept visible.
type DailyAggregator struct {
	store   docstore.Store
	errs    *Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDailyAggregator creates an aggregator writing to the given store.
func NewDailyAggregator(store docstore.Store, errs *Sink) *DailyAggregator {
	return &DailyAggregator{store: store, errs: errs, now: time.Now}
}

func (a *DailyAggregator) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

func (a *DailyAggregator) today() string {
	return a.now().UTC().Format("2006-01-02")
}

// ensureStats transitions the date document from absent to initialized. Must
// run before any increment: the store's increment fails against a document
// that does not exist.
func (a *DailyAggregator) ensureStats(ctx context.Context, date string) error {
	return ensureDoc(ctx, a.store, CollUsageStats, date, zeroStatsDoc(date, a.now()))
}

// RecordAnalysis folds one scored analysis into today's rollup: bumps
// total_analyses and the objective histogram, and advances the processing
// time running mean keyed off the pre-increment count.
func (a *DailyAggregator) RecordAnalysis(ctx context.Context, objective models.Objective, processingTimeMs int64) {
	date := a.today()

	if err := a.ensureStats(ctx, date); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_analysis.ensure", docstore.Document{"date": date})
		return
	}

	doc, err := a.store.Get(ctx, CollUsageStats, date)
	if err == nil && doc == nil {
		err = docstore.ErrNotFound
	}
	if err != nil {
		a.errs.Log(ctx, err, "aggregator.record_analysis.read", docstore.Document{"date": date})
		return
	}
	oldCount := docstore.Int(doc, "total_analyses")
	oldAvg := docstore.Float(doc, "avg_processing_time_ms")
	newAvg := (oldAvg*float64(oldCount) + float64(processingTimeMs)) / float64(oldCount+1)

	if err := a.store.Increment(ctx, CollUsageStats, date, "total_analyses", 1); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_analysis.count", docstore.Document{"date": date})
		return
	}
	if err := a.store.Increment(ctx, CollUsageStats, date, "top_objectives."+string(objective), 1); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_analysis.objective", docstore.Document{"date": date})
	}
	if err := a.store.Update(ctx, CollUsageStats, date, docstore.Document{
		"avg_processing_time_ms": newAvg,
		"updated_at":             a.now().UTC(),
	}); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_analysis.avg", docstore.Document{"date": date})
	}
}

// RecordDuplicate bumps today's duplicate counter. Advisory only: duplicate
// submissions are still scored and recorded as full sessions.
func (a *DailyAggregator) RecordDuplicate(ctx context.Context) {
	date := a.today()

	if a.metrics != nil {
		a.metrics.Duplicates.Inc()
	}

	if err := a.ensureStats(ctx, date); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_duplicate.ensure", docstore.Document{"date": date})
		return
	}
	if err := a.store.Increment(ctx, CollUsageStats, date, "duplicate_analyses", 1); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_duplicate.count", docstore.Document{"date": date})
	}
}

// RecordFeedback folds one rating into today's feedback count and rating
// running mean, keyed off the pre-increment feedback_count.
func (a *DailyAggregator) RecordFeedback(ctx context.Context, rating int) {
	date := a.today()

	if err := a.ensureStats(ctx, date); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_feedback.ensure", docstore.Document{"date": date})
		return
	}

	doc, err := a.store.Get(ctx, CollUsageStats, date)
	if err == nil && doc == nil {
		err = docstore.ErrNotFound
	}
	if err != nil {
		a.errs.Log(ctx, err, "aggregator.record_feedback.read", docstore.Document{"date": date})
		return
	}
	oldCount := docstore.Int(doc, "feedback_count")
	oldAvg := docstore.Float(doc, "avg_rating")
	newAvg := (oldAvg*float64(oldCount) + float64(rating)) / float64(oldCount+1)

	if err := a.store.Increment(ctx, CollUsageStats, date, "feedback_count", 1); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_feedback.count", docstore.Document{"date": date})
		return
	}
	if err := a.store.Update(ctx, CollUsageStats, date, docstore.Document{
		"avg_rating": newAvg,
		"updated_at": a.now().UTC(),
	}); err != nil {
		a.errs.Log(ctx, err, "aggregator.record_feedback.avg", docstore.Document{"date": date})
	}
}

package analytics

import (
	"context"
	"testing"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/models"
)

func TestRecordAnalysisRollup(t *testing.T) {
	store := docstore.NewMemoryStore()
	agg, _, _ := newTestPipeline(store)
	ctx := context.Background()

	agg.RecordAnalysis(ctx, models.ObjectiveConversion, 1000)
	agg.RecordAnalysis(ctx, models.ObjectiveAwareness, 2000)

	doc, err := store.Get(ctx, CollUsageStats, testDate)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if doc == nil {
		t.Fatal("usage_stats document was not created")
	}

	stats := StatsFromDoc(doc)
	if stats.TotalAnalyses != 2 {
		t.Fatalf("got total_analyses=%d, want 2", stats.TotalAnalyses)
	}
	if stats.AvgProcessingTimeMs != 1500 {
		t.Fatalf("got avg_processing_time_ms=%v, want 1500", stats.AvgProcessingTimeMs)
	}
	if got := stats.TopObjectives["conversion"]; got != 1 {
		t.Fatalf("got top_objectives[conversion]=%d, want 1", got)
	}
	if got := stats.TopObjectives["awareness"]; got != 1 {
		t.Fatalf("got top_objectives[awareness]=%d, want 1", got)
	}
	if stats.Date != testDate {
		t.Fatalf("got date=%q, want %q", stats.Date, testDate)
	}
}

func TestRecordAnalysisInitializesAbsentDay(t *testing.T) {
	store := docstore.NewMemoryStore()
	agg, _, _ := newTestPipeline(store)

	// First touch of the day must initialize, never surface not-found.
	agg.RecordAnalysis(context.Background(), models.ObjectiveTraffic, 500)

	if n := errorLogCount(store); n != 0 {
		t.Fatalf("got %d error log entries, want 0", n)
	}
	doc, _ := store.Get(context.Background(), CollUsageStats, testDate)
	if doc == nil {
		t.Fatal("usage_stats document was not initialized")
	}
	if got := docstore.Int(doc, "unique_users"); got != 0 {
		t.Fatalf("got unique_users=%d, want 0", got)
	}
}

func TestRecordFeedbackRollup(t *testing.T) {
	store := docstore.NewMemoryStore()
	agg, _, _ := newTestPipeline(store)
	ctx := context.Background()

	agg.RecordFeedback(ctx, 4)
	agg.RecordFeedback(ctx, 2)

	doc, _ := store.Get(ctx, CollUsageStats, testDate)
	stats := StatsFromDoc(doc)
	if stats.FeedbackCount != 2 {
		t.Fatalf("got feedback_count=%d, want 2", stats.FeedbackCount)
	}
	if stats.AvgRating != 3.0 {
		t.Fatalf("got avg_rating=%v, want 3.0", stats.AvgRating)
	}
}

func TestRecordDuplicate(t *testing.T) {
	store := docstore.NewMemoryStore()
	agg, _, _ := newTestPipeline(store)
	ctx := context.Background()

	agg.RecordDuplicate(ctx)
	agg.RecordDuplicate(ctx)

	doc, _ := store.Get(ctx, CollUsageStats, testDate)
	if got := docstore.Int(doc, "duplicate_analyses"); got != 2 {
		t.Fatalf("got duplicate_analyses=%d, want 2", got)
	}
}

func TestAggregatorSwallowsStoreFailures(t *testing.T) {
	inner := docstore.NewMemoryStore()
	store := &flakyStore{Store: inner, failIncrement: true}
	agg, _, _ := newTestPipeline(store)
	ctx := context.Background()

	// Must not panic or block; failures land in the error log.
	agg.RecordAnalysis(ctx, models.ObjectiveConversion, 1000)
	agg.RecordFeedback(ctx, 5)
	agg.RecordDuplicate(ctx)

	if n := errorLogCount(inner); n == 0 {
		t.Fatal("expected error log entries for failed increments, got none")
	}
}

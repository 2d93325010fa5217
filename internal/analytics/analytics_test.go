package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/models"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a real store and fails selected operations, for testing
// that bookkeeping failures never reach the primary flow.
type flakyStore struct {
	docstore.Store
	failIncrement bool
	failUpdate    bool
	failQuery     bool
}

func (f *flakyStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if f.failIncrement {
		return errStoreDown
	}
	return f.Store.Increment(ctx, collection, id, field, delta)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	if f.failUpdate {
		return errStoreDown
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *flakyStore) QueryDocs(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if f.failQuery {
		return nil, errStoreDown
	}
	return f.Store.QueryDocs(ctx, collection, q)
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testDate = "2026-03-01"

// newTestPipeline wires an aggregator and both recorders over the given store
// with a fixed clock and sequential ids.
func newTestPipeline(store docstore.Store) (*DailyAggregator, *SessionRecorder, *FeedbackRecorder) {
	now := func() time.Time { return testClock }

	sink := NewSink(store, zap.NewNop(), nil)
	agg := NewDailyAggregator(store, sink)
	agg.now = now

	nextID := 0
	newID := func() string {
		nextID++
		return fmt.Sprintf("id-%04d", nextID)
	}

	sessions := NewSessionRecorder(store, agg, sink)
	sessions.now = now
	sessions.newID = newID

	feedback := NewFeedbackRecorder(store, agg, sink)
	feedback.now = now
	feedback.newID = newID

	return agg, sessions, feedback
}

func testIdentity(id string) *models.AnonymousIdentity {
	return &models.AnonymousIdentity{
		ID:           id,
		CreatedAt:    testClock,
		LastActiveAt: testClock,
		SessionCount: 1,
		DeviceInfo: models.DeviceInfo{
			UserAgent: "test-agent",
			Language:  "en-US",
			Timezone:  "UTC",
		},
	}
}

func testRecordInput(image string) *RecordInput {
	return &RecordInput{
		Fingerprint:          Fingerprint(image, "young professionals interested in fitness", models.ObjectiveConversion),
		TargetingDescription: "young professionals interested in fitness",
		Objective:            models.ObjectiveConversion,
		Scores:               models.ScoreSet{Overall: 82, Clarity: 75, Design: 88, AudienceAffinity: 79},
		Recommendations:      []string{"increase contrast", "shorten headline"},
		ProcessingTimeMs:     1200,
	}
}

func errorLogCount(store docstore.Store) int {
	docs, err := store.QueryDocs(context.Background(), CollErrorLogs, docstore.Query{})
	if err != nil {
		return -1
	}
	return len(docs)
}

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/models"
	"github.com/google/uuid"
)

// FeedbackRecorder persists user ratings tied to a prior analysis session.
// The FeedbackRecord is the source of truth; the session amendment, identity
// mirror and daily rollup are best-effort.
type FeedbackRecorder struct {
	store docstore.Store
	agg   *DailyAggregator
	errs  *Sink
	now   func() time.Time
	newID func() string
}

// NewFeedbackRecorder creates a recorder writing to the given store.
func NewFeedbackRecorder(store docstore.Store, agg *DailyAggregator, errs *Sink) *FeedbackRecorder {
	return &FeedbackRecorder{
		store: store,
		agg:   agg,
		errs:  errs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Submit validates and persists one feedback record. Only the record creation
// itself can fail the caller.
func (r *FeedbackRecorder) Submit(ctx context.Context, identity *models.AnonymousIdentity, sessionID string, fb *models.FeedbackRecord) error {
	if sessionID == "" {
		return &models.ValidationError{Field: "analysis_session_id", Reason: "must not be empty"}
	}
	if err := fb.Validate(); err != nil {
		return err
	}

	fb.ID = r.newID()
	fb.AnonymousID = identity.ID
	fb.AnalysisSessionID = sessionID
	fb.CreatedAt = r.now().UTC()

	if err := r.store.Create(ctx, CollFeedback, fb.ID, feedbackDoc(fb)); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	r.amendSession(ctx, sessionID, fb)
	mirrorIdentityCounter(ctx, r.store, r.errs, identity, "feedback_count", r.now)
	r.agg.RecordFeedback(ctx, fb.OverallRating)

	return nil
}

// amendSession attaches the rating to the referenced session. The session may
// legitimately be gone or unreachable; the feedback record stands either way.
func (r *FeedbackRecorder) amendSession(ctx context.Context, sessionID string, fb *models.FeedbackRecord) {
	err := r.store.Update(ctx, CollAnalysisSessions, sessionID, docstore.Document{
		"user_rating":        fb.OverallRating,
		"user_feedback_text": fb.FeedbackText,
		"was_helpful":        fb.OverallRating >= 4,
		"updated_at":         r.now().UTC(),
	})
	if err != nil {
		r.errs.Log(ctx, err, "feedback.amend_session", docstore.Document{"analysis_session_id": sessionID})
	}
}

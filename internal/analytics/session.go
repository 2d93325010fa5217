package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/models"
	"github.com/google/uuid"
)

// SessionRecorder persists one analysis event as an immutable
// analysis_sessions record and drives the bookkeeping around it. Only the
// session write itself can fail the caller; the duplicate check, the identity
// mirror and the daily rollup are best-effort and logged.
type SessionRecorder struct {
	store docstore.Store
	agg   *DailyAggregator
	errs  *Sink
	now   func() time.Time
	newID func() string
}

// NewSessionRecorder creates a recorder writing sessions to the given store.
func NewSessionRecorder(store docstore.Store, agg *DailyAggregator, errs *Sink) *SessionRecorder {
	return &SessionRecorder{
		store: store,
		agg:   agg,
		errs:  errs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// RecordInput carries everything needed to persist one scored analysis.
type RecordInput struct {
	Fingerprint          string
	TargetingDescription string
	Objective            models.Objective
	Scores               models.ScoreSet
	Recommendations      []string
	ProcessingTimeMs     int64
}

// Validate rejects out-of-range values before any store call.
func (in *RecordInput) Validate() error {
	if !in.Objective.Valid() {
		return &models.ValidationError{Field: "objective", Reason: "unknown campaign objective"}
	}
	if in.ProcessingTimeMs < 0 {
		return &models.ValidationError{Field: "processing_time_ms", Reason: "must be non-negative"}
	}
	return in.Scores.Validate()
}

// Record persists the session and returns its id. The session, once created,
// is authoritative regardless of downstream bookkeeping failures.
func (r *SessionRecorder) Record(ctx context.Context, identity *models.AnonymousIdentity, in *RecordInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	// Duplicate probe: same fingerprint previously submitted by the same
	// identity. Advisory only, never blocks the write.
	r.checkDuplicate(ctx, identity.ID, in.Fingerprint)

	session := &models.AnalysisSession{
		ID:                   r.newID(),
		AnonymousID:          identity.ID,
		CreatedAt:            r.now().UTC(),
		Fingerprint:          in.Fingerprint,
		TargetingDescription: in.TargetingDescription,
		Objective:            in.Objective,
		Scores:               in.Scores,
		Recommendations:      in.Recommendations,
		ProcessingTimeMs:     in.ProcessingTimeMs,
		DeviceInfo:           identity.DeviceInfo,
	}
	if err := r.store.Create(ctx, CollAnalysisSessions, session.ID, sessionDoc(session)); err != nil {
		return "", fmt.Errorf("failed to record analysis session: %w", err)
	}

	r.mirrorIdentity(ctx, identity, "analysis_count")
	r.agg.RecordAnalysis(ctx, in.Objective, in.ProcessingTimeMs)

	return session.ID, nil
}

// checkDuplicate queries prior sessions for the identity with the same
// fingerprint and feeds the duplicate rollup when one exists. The lookback
// is unbounded: an intentional re-analysis weeks later counts the same as an
// accidental resubmission.
func (r *SessionRecorder) checkDuplicate(ctx context.Context, anonymousID, fingerprint string) {
	if fingerprint == "" {
		return
	}
	docs, err := r.store.QueryDocs(ctx, CollAnalysisSessions, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "anonymous_id", Value: anonymousID},
			{Field: "fingerprint", Value: fingerprint},
		},
		Limit: 1,
	})
	if err != nil {
		r.errs.Log(ctx, err, "session.duplicate_check", docstore.Document{"anonymous_id": anonymousID})
		return
	}
	if len(docs) > 0 {
		r.agg.RecordDuplicate(ctx)
	}
}

// mirrorIdentity lazily copies the client-owned identity into the store and
// bumps one of its counters. The store copy is a cache, not authority: first
// write wins, later writes only update counters and last_active_at.
func (r *SessionRecorder) mirrorIdentity(ctx context.Context, identity *models.AnonymousIdentity, counter string) {
	mirrorIdentityCounter(ctx, r.store, r.errs, identity, counter, r.now)
}

func mirrorIdentityCounter(ctx context.Context, store docstore.Store, errs *Sink, identity *models.AnonymousIdentity, counter string, now func() time.Time) {
	extra := docstore.Document{"anonymous_id": identity.ID}

	if err := ensureDoc(ctx, store, CollAnonymousUsers, identity.ID, identityDoc(identity)); err != nil {
		errs.Log(ctx, err, "identity.mirror.ensure", extra)
		return
	}
	if err := store.Increment(ctx, CollAnonymousUsers, identity.ID, counter, 1); err != nil {
		errs.Log(ctx, err, "identity.mirror."+counter, extra)
	}
	if err := store.Update(ctx, CollAnonymousUsers, identity.ID, docstore.Document{
		"last_active_at": now().UTC(),
	}); err != nil {
		errs.Log(ctx, err, "identity.mirror.touch", extra)
	}
}

// History returns the identity's most recent sessions, newest first.
func (r *SessionRecorder) History(ctx context.Context, anonymousID string, limit int) ([]*models.AnalysisSession, error) {
	if limit <= 0 {
		limit = 10
	}
	docs, err := r.store.QueryDocs(ctx, CollAnalysisSessions, docstore.Query{
		Filters: []docstore.Filter{{Field: "anonymous_id", Value: anonymousID}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis history: %w", err)
	}

	sessions := make([]*models.AnalysisSession, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, sessionFromDoc(doc))
	}
	return sessions, nil
}

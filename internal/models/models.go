package models

import (
	"fmt"
	"time"
)

// ===========================================
// VALIDATION
// ===========================================

// ValidationError reports a caller-supplied value that was rejected at the
// boundary, before any store or scorer call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ===========================================
// CAMPAIGN OBJECTIVE
// ===========================================

// Objective is the campaign goal a creative is analyzed against.
type Objective string

const (
	ObjectiveAwareness     Objective = "awareness"
	ObjectiveConsideration Objective = "consideration"
	ObjectiveConversion    Objective = "conversion"
	ObjectiveEngagement    Objective = "engagement"
	ObjectiveTraffic       Objective = "traffic"
	ObjectiveLeads         Objective = "leads"
)

// Valid reports whether the objective is one of the known campaign goals.
func (o Objective) Valid() bool {
	switch o {
	case ObjectiveAwareness, ObjectiveConsideration, ObjectiveConversion,
		ObjectiveEngagement, ObjectiveTraffic, ObjectiveLeads:
		return true
	}
	return false
}

// ===========================================
// ANONYMOUS IDENTITY
// ===========================================

// DeviceInfo is a descriptive blob about the client device. It is stored
// opaquely and never interpreted by the analytics pipeline.
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	Language  string `json:"language"`
	Timezone  string `json:"timezone"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
}

// AnonymousIdentity represents one device/browser instance. The id is
// immutable once created; all counters are monotonically non-decreasing.
type AnonymousIdentity struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastActiveAt  time.Time  `json:"last_active_at"`
	SessionCount  int64      `json:"session_count"`
	AnalysisCount int64      `json:"analysis_count"`
	FeedbackCount int64      `json:"feedback_count"`
	DeviceInfo    DeviceInfo `json:"device_info"`
}

// ===========================================
// ANALYSIS SESSION
// ===========================================

// ScoreSet holds the scores returned by the generative scorer, each in [0,100].
type ScoreSet struct {
	Overall          float64 `json:"overall"`
	Clarity          float64 `json:"clarity"`
	Design           float64 `json:"design"`
	AudienceAffinity float64 `json:"audience_affinity"`
}

// Validate checks every score is within [0,100].
func (s ScoreSet) Validate() error {
	for _, v := range []struct {
		name  string
		score float64
	}{
		{"overall", s.Overall},
		{"clarity", s.Clarity},
		{"design", s.Design},
		{"audience_affinity", s.AudienceAffinity},
	} {
		if v.score < 0 || v.score > 100 {
			return &ValidationError{Field: "scores." + v.name, Reason: "must be within [0,100]"}
		}
	}
	return nil
}

// AnalysisSession is one immutable record of a scoring request/response.
// Only the user rating/feedback amendment may be applied after creation.
type AnalysisSession struct {
	ID                   string     `json:"id"`
	AnonymousID          string     `json:"anonymous_id"`
	CreatedAt            time.Time  `json:"created_at"`
	Fingerprint          string     `json:"fingerprint"`
	TargetingDescription string     `json:"targeting_description"`
	Objective            Objective  `json:"objective"`
	Scores               ScoreSet   `json:"scores"`
	Recommendations      []string   `json:"recommendations"`
	ProcessingTimeMs     int64      `json:"processing_time_ms"`
	DeviceInfo           DeviceInfo `json:"device_info"`

	// Amended at most once per rating submission.
	UserRating       int    `json:"user_rating,omitempty"`
	UserFeedbackText string `json:"user_feedback_text,omitempty"`
}

// ===========================================
// FEEDBACK
// ===========================================

// FeedbackRecord is a user's evaluation of one AnalysisSession. Created once,
// never mutated. The store does not enforce one-per-session.
type FeedbackRecord struct {
	ID                string    `json:"id"`
	AnonymousID       string    `json:"anonymous_id"`
	AnalysisSessionID string    `json:"analysis_session_id"`
	CreatedAt         time.Time `json:"created_at"`
	OverallRating     int       `json:"overall_rating"`
	AccuracyRating    int       `json:"accuracy_rating"`
	UsefulnessRating  int       `json:"usefulness_rating"`
	FeedbackText      string    `json:"feedback_text"`
	WouldRecommend    bool      `json:"would_recommend"`
	WillUseAgain      bool      `json:"will_use_again"`
}

// Validate checks all ratings are within 1..5.
func (f *FeedbackRecord) Validate() error {
	for _, v := range []struct {
		name   string
		rating int
	}{
		{"overall_rating", f.OverallRating},
		{"accuracy_rating", f.AccuracyRating},
		{"usefulness_rating", f.UsefulnessRating},
	} {
		if v.rating < 1 || v.rating > 5 {
			return &ValidationError{Field: v.name, Reason: "must be within 1..5"}
		}
	}
	return nil
}

// ===========================================
// DAILY STATS
// ===========================================

// DailyStats is the mutable per-day rollup document, keyed by YYYY-MM-DD (UTC).
// Created lazily with zeroed counters, updated incrementally, never deleted
// and never recomputed from scratch.
type DailyStats struct {
	Date                string           `json:"date"`
	TotalAnalyses       int64            `json:"total_analyses"`
	UniqueUsers         int64            `json:"unique_users"`
	AvgProcessingTimeMs float64          `json:"avg_processing_time_ms"`
	TopObjectives       map[string]int64 `json:"top_objectives"`
	FeedbackCount       int64            `json:"feedback_count"`
	AvgRating           float64          `json:"avg_rating"`
	DuplicateAnalyses   int64            `json:"duplicate_analyses"`
}

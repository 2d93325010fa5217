package analytics

import (
	"context"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/models"
)

// Collections persisted by the analytics pipeline.
const (
	CollAnonymousUsers   = "anonymous_users"
	CollAnalysisSessions = "analysis_sessions"
	CollFeedback         = "feedback"
	CollUsageStats       = "usage_stats"
	CollErrorLogs        = "error_logs"
)

// ensureDoc guarantees a document exists before an increment or update is
// applied to it: check existence, create zeroed defaults when absent. Create
// is a no-op when the id already exists, so concurrent ensures are safe.
// Every aggregation and identity-mirroring path goes through this one
// primitive; the store's increment fails against absent documents.
func ensureDoc(ctx context.Context, store docstore.Store, collection, id string, defaults docstore.Document) error {
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if doc != nil {
		return nil
	}
	return store.Create(ctx, collection, id, defaults)
}

// ===========================================
// DOCUMENT SHAPES
// ===========================================

func deviceDoc(d models.DeviceInfo) docstore.Document {
	return docstore.Document{
		"user_agent": d.UserAgent,
		"language":   d.Language,
		"timezone":   d.Timezone,
		"country":    d.Country,
		"region":     d.Region,
	}
}

func identityDoc(id *models.AnonymousIdentity) docstore.Document {
	return docstore.Document{
		"id":             id.ID,
		"created_at":     id.CreatedAt.UTC(),
		"last_active_at": id.LastActiveAt.UTC(),
		"session_count":  id.SessionCount,
		"analysis_count": id.AnalysisCount,
		"feedback_count": id.FeedbackCount,
		"device_info":    deviceDoc(id.DeviceInfo),
	}
}

func sessionDoc(s *models.AnalysisSession) docstore.Document {
	return docstore.Document{
		"id":                    s.ID,
		"anonymous_id":          s.AnonymousID,
		"created_at":            s.CreatedAt.UTC(),
		"fingerprint":           s.Fingerprint,
		"targeting_description": s.TargetingDescription,
		"objective":             string(s.Objective),
		"scores": docstore.Document{
			"overall":           s.Scores.Overall,
			"clarity":           s.Scores.Clarity,
			"design":            s.Scores.Design,
			"audience_affinity": s.Scores.AudienceAffinity,
		},
		"recommendations":    s.Recommendations,
		"processing_time_ms": s.ProcessingTimeMs,
		"device_info":        deviceDoc(s.DeviceInfo),
	}
}

func sessionFromDoc(doc docstore.Document) *models.AnalysisSession {
	scores := docstore.Map(doc, "scores")
	device := docstore.Map(doc, "device_info")
	return &models.AnalysisSession{
		ID:                   docstore.String(doc, "id"),
		AnonymousID:          docstore.String(doc, "anonymous_id"),
		CreatedAt:            docstore.Time(doc, "created_at"),
		Fingerprint:          docstore.String(doc, "fingerprint"),
		TargetingDescription: docstore.String(doc, "targeting_description"),
		Objective:            models.Objective(docstore.String(doc, "objective")),
		Scores: models.ScoreSet{
			Overall:          docstore.Float(scores, "overall"),
			Clarity:          docstore.Float(scores, "clarity"),
			Design:           docstore.Float(scores, "design"),
			AudienceAffinity: docstore.Float(scores, "audience_affinity"),
		},
		Recommendations:  docstore.Strings(doc, "recommendations"),
		ProcessingTimeMs: docstore.Int(doc, "processing_time_ms"),
		DeviceInfo: models.DeviceInfo{
			UserAgent: docstore.String(device, "user_agent"),
			Language:  docstore.String(device, "language"),
			Timezone:  docstore.String(device, "timezone"),
			Country:   docstore.String(device, "country"),
			Region:    docstore.String(device, "region"),
		},
		UserRating:       int(docstore.Int(doc, "user_rating")),
		UserFeedbackText: docstore.String(doc, "user_feedback_text"),
	}
}

func feedbackDoc(f *models.FeedbackRecord) docstore.Document {
	return docstore.Document{
		"id":                  f.ID,
		"anonymous_id":        f.AnonymousID,
		"analysis_session_id": f.AnalysisSessionID,
		"created_at":          f.CreatedAt.UTC(),
		"overall_rating":      f.OverallRating,
		"accuracy_rating":     f.AccuracyRating,
		"usefulness_rating":   f.UsefulnessRating,
		"feedback_text":       f.FeedbackText,
		"would_recommend":     f.WouldRecommend,
		"will_use_again":      f.WillUseAgain,
	}
}

func zeroStatsDoc(date string, now time.Time) docstore.Document {
	return docstore.Document{
		"date":                   date,
		"total_analyses":         int64(0),
		"unique_users":           int64(0),
		"avg_processing_time_ms": float64(0),
		"top_objectives":         docstore.Document{},
		"feedback_count":         int64(0),
		"avg_rating":             float64(0),
		"duplicate_analyses":     int64(0),
		"created_at":             now.UTC(),
		"updated_at":             now.UTC(),
	}
}

// StatsFromDoc decodes a usage_stats document into a DailyStats model.
func StatsFromDoc(doc docstore.Document) *models.DailyStats {
	objectives := docstore.Map(doc, "top_objectives")
	top := make(map[string]int64, len(objectives))
	for k := range objectives {
		top[k] = docstore.Int(objectives, k)
	}
	return &models.DailyStats{
		Date:                docstore.String(doc, "date"),
		TotalAnalyses:       docstore.Int(doc, "total_analyses"),
		UniqueUsers:         docstore.Int(doc, "unique_users"),
		AvgProcessingTimeMs: docstore.Float(doc, "avg_processing_time_ms"),
		TopObjectives:       top,
		FeedbackCount:       docstore.Int(doc, "feedback_count"),
		AvgRating:           docstore.Float(doc, "avg_rating"),
		DuplicateAnalyses:   docstore.Int(doc, "duplicate_analyses"),
	}
}

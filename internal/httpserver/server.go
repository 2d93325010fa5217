package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/admetrica/creativescope/internal/analytics"
	"github.com/admetrica/creativescope/internal/config"
	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/geo"
	"github.com/admetrica/creativescope/internal/identity"
	"github.com/admetrica/creativescope/internal/metrics"
	"github.com/admetrica/creativescope/internal/middleware"
	"github.com/admetrica/creativescope/internal/models"
	"github.com/admetrica/creativescope/internal/scoring"
	"github.com/admetrica/creativescope/internal/warehouse"
	"go.uber.org/zap"
)

// AdminPaths lists route prefixes gated by the admin key.
var AdminPaths = []string{"/v1/stats", "/v1/errors"}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Store    docstore.Store
	Scorer   scoring.Scorer
	Geo      *geo.Provider
	Archiver *warehouse.Archiver
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Server wraps HTTP handlers and the analytics services.
type Server struct {
	store    docstore.Store
	scorer   scoring.Scorer
	geo      *geo.Provider
	archiver *warehouse.Archiver
	sessions *analytics.SessionRecorder
	feedback *analytics.FeedbackRecorder
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	sink := analytics.NewSink(deps.Store, deps.Logger, deps.Metrics)
	agg := analytics.NewDailyAggregator(deps.Store, sink)
	agg.SetMetrics(deps.Metrics)

	s := &Server{
		store:    deps.Store,
		scorer:   deps.Scorer,
		geo:      deps.Geo,
		archiver: deps.Archiver,
		sessions: analytics.NewSessionRecorder(deps.Store, agg, sink),
		feedback: analytics.NewFeedbackRecorder(deps.Store, agg, sink),
		logger:   deps.Logger,
		config:   deps.Config,
		metrics:  deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Analysis
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/feedback", s.handleFeedback)
	mux.HandleFunc("/v1/history", s.handleHistory)

	// Admin reads
	mux.HandleFunc("/v1/stats/daily", s.handleDailyStats)
	mux.HandleFunc("/v1/errors", s.handleErrorLog)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Analyze ----

type analyzeRequest struct {
	ImageContent         string `json:"image_content"`
	TargetingDescription string `json:"targeting_description"`
	CampaignObjective    string `json:"campaign_objective"`
	Timezone             string `json:"timezone"`
}

type analyzeResponse struct {
	SessionID        string          `json:"session_id"`
	Scores           models.ScoreSet `json:"scores"`
	Recommendations  []string        `json:"recommendations"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := validateAnalyzeRequest(&req); err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	objective := models.Objective(req.CampaignObjective)

	resolver := identity.NewResolver(
		identity.NewCookieStorage(w, r),
		s.deviceInfo(r, req.Timezone),
	)
	id := resolver.Resolve()

	start := time.Now()
	result, err := s.scorer.Score(r.Context(), &scoring.Request{
		ImageContent: req.ImageContent,
		Targeting:    req.TargetingDescription,
		Objective:    objective,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("creative scoring failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordAnalysis(string(objective), "scorer_error", elapsed)
		}
		s.errorResponse(w, "analysis unavailable", http.StatusBadGateway)
		return
	}

	processingMs := elapsed.Milliseconds()
	sessionID, err := s.sessions.Record(r.Context(), id, &analytics.RecordInput{
		Fingerprint:          analytics.Fingerprint(req.ImageContent, req.TargetingDescription, objective),
		TargetingDescription: req.TargetingDescription,
		Objective:            objective,
		Scores:               result.Scores,
		Recommendations:      result.Recommendations,
		ProcessingTimeMs:     processingMs,
	})
	if err != nil {
		s.logger.Error("failed to record analysis session", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordAnalysis(string(objective), "store_error", elapsed)
		}
		s.errorResponse(w, "failed to record analysis", http.StatusInternalServerError)
		return
	}
	resolver.BumpAnalysisCount()

	if s.archiver != nil {
		s.archiver.Archive(r.Context(), &warehouse.AnalysisEvent{
			Timestamp:        time.Now().UTC(),
			SessionID:        sessionID,
			AnonymousID:      id.ID,
			Fingerprint:      analytics.Fingerprint(req.ImageContent, req.TargetingDescription, objective),
			Objective:        objective,
			Scores:           result.Scores,
			ProcessingTimeMs: processingMs,
			Country:          id.DeviceInfo.Country,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordAnalysis(string(objective), "ok", elapsed)
	}

	s.jsonResponse(w, analyzeResponse{
		SessionID:        sessionID,
		Scores:           result.Scores,
		Recommendations:  result.Recommendations,
		ProcessingTimeMs: processingMs,
	})
}

func validateAnalyzeRequest(req *analyzeRequest) error {
	if err := validateImageContent(req.ImageContent); err != nil {
		return err
	}
	if len(strings.TrimSpace(req.TargetingDescription)) < 10 {
		return &models.ValidationError{Field: "targeting_description", Reason: "must be at least 10 characters"}
	}
	if !models.Objective(req.CampaignObjective).Valid() {
		return &models.ValidationError{Field: "campaign_objective", Reason: "unknown campaign objective"}
	}
	return nil
}

// validateImageContent accepts a base64 data URI or an absolute http(s) URL.
func validateImageContent(content string) error {
	if content == "" {
		return &models.ValidationError{Field: "image_content", Reason: "required"}
	}
	if strings.HasPrefix(content, "data:image/") {
		if !strings.Contains(content, ";base64,") {
			return &models.ValidationError{Field: "image_content", Reason: "data URI must be base64 encoded"}
		}
		return nil
	}
	u, err := url.Parse(content)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &models.ValidationError{Field: "image_content", Reason: "must be an image data URI or http(s) URL"}
	}
	return nil
}

// ---- Feedback ----

type feedbackRequest struct {
	SessionID        string `json:"session_id"`
	OverallRating    int    `json:"overall_rating"`
	AccuracyRating   int    `json:"accuracy_rating"`
	UsefulnessRating int    `json:"usefulness_rating"`
	FeedbackText     string `json:"feedback_text"`
	WouldRecommend   bool   `json:"would_recommend"`
	WillUseAgain     bool   `json:"will_use_again"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	resolver := identity.NewResolver(
		identity.NewCookieStorage(w, r),
		s.deviceInfo(r, ""),
	)
	id := resolver.Resolve()

	err := s.feedback.Submit(r.Context(), id, req.SessionID, &models.FeedbackRecord{
		OverallRating:    req.OverallRating,
		AccuracyRating:   req.AccuracyRating,
		UsefulnessRating: req.UsefulnessRating,
		FeedbackText:     req.FeedbackText,
		WouldRecommend:   req.WouldRecommend,
		WillUseAgain:     req.WillUseAgain,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			s.errorResponse(w, verr.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("failed to record feedback", zap.Error(err))
		s.errorResponse(w, "failed to record feedback", http.StatusInternalServerError)
		return
	}
	resolver.BumpFeedbackCount()

	if s.metrics != nil {
		s.metrics.RecordFeedback(req.OverallRating)
	}

	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// ---- History ----

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resolver := identity.NewResolver(
		identity.NewCookieStorage(w, r),
		s.deviceInfo(r, ""),
	)
	id := resolver.Resolve()

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.errorResponse(w, "limit must be within 1..100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.sessions.History(r.Context(), id.ID, limit)
	if err != nil {
		s.logger.Error("failed to list history", zap.Error(err))
		s.errorResponse(w, "failed to list history", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, sessions)
}

// ---- Daily Stats (admin) ----

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		s.errorResponse(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	doc, err := s.store.Get(r.Context(), analytics.CollUsageStats, date)
	if err != nil {
		s.logger.Error("failed to read daily stats", zap.Error(err))
		s.errorResponse(w, "failed to read stats", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		s.jsonResponse(w, &models.DailyStats{Date: date, TopObjectives: map[string]int64{}})
		return
	}

	s.jsonResponse(w, analytics.StatsFromDoc(doc))
}

// ---- Error Log (admin) ----

func (s *Server) handleErrorLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorResponse(w, "limit must be within 1..500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	docs, err := s.store.QueryDocs(r.Context(), analytics.CollErrorLogs, docstore.Query{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		s.logger.Error("failed to read error log", zap.Error(err))
		s.errorResponse(w, "failed to read error log", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, docs)
}

// ---- Helper Methods ----

// deviceInfo collects request-derived device attributes, enriched with a geo
// lookup when a GeoIP database is configured.
func (s *Server) deviceInfo(r *http.Request, timezone string) models.DeviceInfo {
	info := models.DeviceInfo{
		UserAgent: r.UserAgent(),
		Language:  firstLanguage(r.Header.Get("Accept-Language")),
		Timezone:  timezone,
	}

	if s.geo != nil {
		if g, err := s.geo.Lookup(middleware.ClientIP(r)); err == nil {
			info.Country = g.Country
			info.Region = g.Region
			if info.Timezone == "" {
				info.Timezone = g.Timezone
			}
		}
	}
	return info
}

func firstLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	first := strings.Split(acceptLanguage, ",")[0]
	return strings.TrimSpace(strings.Split(first, ";")[0])
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

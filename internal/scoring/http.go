package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/admetrica/creativescope/internal/config"
	"github.com/admetrica/creativescope/internal/metrics"
	"github.com/admetrica/creativescope/internal/models"
	"go.uber.org/zap"
)

// HTTPScorer calls a generative-model gateway over HTTP. Calls are retried
// with exponential backoff on transient failures; the configured timeout
// bounds each attempt.
type HTTPScorer struct {
	cfg     config.ScorerConfig
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
	sleep   func(time.Duration)
}

// NewHTTPScorer creates a scorer for the configured gateway. metrics may be
// nil.
func NewHTTPScorer(cfg config.ScorerConfig, logger *zap.Logger, m *metrics.Metrics) *HTTPScorer {
	return &HTTPScorer{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
		sleep:   time.Sleep,
	}
}

type scoreRequest struct {
	Model     string `json:"model"`
	Image     string `json:"image"`
	Targeting string `json:"targeting"`
	Objective string `json:"objective"`
}

type scoreResponse struct {
	Scores struct {
		Overall          float64 `json:"overall"`
		Clarity          float64 `json:"clarity"`
		Design           float64 `json:"design"`
		AudienceAffinity float64 `json:"audience_affinity"`
	} `json:"scores"`
	Recommendations []string `json:"recommendations"`
}

// Score grades the creative, retrying transient gateway failures.
func (s *HTTPScorer) Score(ctx context.Context, req *Request) (*Result, error) {
	payload, err := json.Marshal(scoreRequest{
		Model:     s.cfg.Model,
		Image:     req.ImageContent,
		Targeting: req.Targeting,
		Objective: string(req.Objective),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scorer request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if s.metrics != nil {
				s.metrics.ScorerRetries.Inc()
			}
			backoff := time.Duration(1<<attempt) * time.Second
			s.logger.Warn("scorer attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			s.sleep(backoff)
		}

		result, err := s.scoreOnce(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("scorer unavailable after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *HTTPScorer) scoreOnce(ctx context.Context, payload []byte) (*Result, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.observe("error", start)
		return nil, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.observe("error", start)
		return nil, fmt.Errorf("failed to read scorer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.observe("error", start)
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		s.observe("error", start)
		return nil, fmt.Errorf("failed to decode scorer response: %w", err)
	}

	result := &Result{
		Scores: models.ScoreSet{
			Overall:          decoded.Scores.Overall,
			Clarity:          decoded.Scores.Clarity,
			Design:           decoded.Scores.Design,
			AudienceAffinity: decoded.Scores.AudienceAffinity,
		},
		Recommendations: decoded.Recommendations,
	}
	if err := result.Scores.Validate(); err != nil {
		s.observe("error", start)
		return nil, fmt.Errorf("scorer returned out-of-range scores: %w", err)
	}

	s.observe("ok", start)
	return result, nil
}

func (s *HTTPScorer) observe(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordScorerCall(status, time.Since(start))
	}
}

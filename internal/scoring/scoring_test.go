package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/admetrica/creativescope/internal/config"
	"github.com/admetrica/creativescope/internal/models"
	"go.uber.org/zap"
)

func testScoreRequest() *Request {
	return &Request{
		ImageContent: "data:image/png;base64,aGVsbG8=",
		Targeting:    "urban commuters aged 25-40",
		Objective:    models.ObjectiveConversion,
	}
}

func TestStaticScorerDeterministic(t *testing.T) {
	s := NewStaticScorer()
	ctx := context.Background()

	a, err := s.Score(ctx, testScoreRequest())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	b, err := s.Score(ctx, testScoreRequest())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if a.Scores != b.Scores {
		t.Fatalf("same inputs scored %v and %v", a.Scores, b.Scores)
	}
	if err := a.Scores.Validate(); err != nil {
		t.Fatalf("static scores out of range: %v", err)
	}
	if len(a.Recommendations) == 0 {
		t.Fatal("static scorer returned no recommendations")
	}
}

func newHTTPScorerForTest(url string, maxRetries int) *HTTPScorer {
	s := NewHTTPScorer(config.ScorerConfig{
		URL:        url,
		APIKey:     "test-key",
		Model:      "creative-judge-1",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	}, zap.NewNop(), nil)
	s.sleep = func(time.Duration) {}
	return s
}

func scorerReply(w http.ResponseWriter, overall float64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"scores": map[string]float64{
			"overall":           overall,
			"clarity":           70,
			"design":            80,
			"audience_affinity": 75,
		},
		"recommendations": []string{"tighten the headline"},
	})
}

func TestHTTPScorerSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("got Authorization %q, want Bearer test-key", got)
		}
		var req struct {
			Model     string `json:"model"`
			Objective string `json:"objective"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Objective != "conversion" {
			t.Errorf("got objective %q, want conversion", req.Objective)
		}
		scorerReply(w, 85)
	}))
	defer srv.Close()

	result, err := newHTTPScorerForTest(srv.URL, 2).Score(context.Background(), testScoreRequest())
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Scores.Overall != 85 {
		t.Fatalf("got overall=%v, want 85", result.Scores.Overall)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(result.Recommendations))
	}
}

func TestHTTPScorerRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		scorerReply(w, 60)
	}))
	defer srv.Close()

	result, err := newHTTPScorerForTest(srv.URL, 2).Score(context.Background(), testScoreRequest())
	if err != nil {
		t.Fatalf("Score returned error after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("got %d calls, want 3", got)
	}
	if result.Scores.Overall != 60 {
		t.Fatalf("got overall=%v, want 60", result.Scores.Overall)
	}
}

func TestHTTPScorerExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newHTTPScorerForTest(srv.URL, 2).Score(context.Background(), testScoreRequest())
	if err == nil {
		t.Fatal("Score succeeded against a failing gateway")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("got %d calls, want 3 (1 + 2 retries)", got)
	}
}

func TestHTTPScorerRejectsOutOfRangeScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scorerReply(w, 142)
	}))
	defer srv.Close()

	_, err := newHTTPScorerForTest(srv.URL, 0).Score(context.Background(), testScoreRequest())
	if err == nil {
		t.Fatal("Score accepted an out-of-range overall score")
	}
}

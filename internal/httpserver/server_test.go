package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/admetrica/creativescope/internal/analytics"
	"github.com/admetrica/creativescope/internal/config"
	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/identity"
	"github.com/admetrica/creativescope/internal/models"
	"github.com/admetrica/creativescope/internal/scoring"
	"go.uber.org/zap"
)

func newTestServer() (http.Handler, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore()
	handler := NewServer(&Dependencies{
		Store:  store,
		Scorer: scoring.NewStaticScorer(),
		Config: &config.Config{},
		Logger: zap.NewNop(),
	})
	return handler, store
}

func analyzeBody(objective string) []byte {
	body, _ := json.Marshal(map[string]any{
		"image_content":         "data:image/png;base64,aGVsbG8=",
		"targeting_description": "young professionals interested in fitness",
		"campaign_objective":    objective,
	})
	return body
}

func doAnalyze(t *testing.T, handler http.Handler, cookies []*http.Cookie) (*httptest.ResponseRecorder, analyzeResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(analyzeBody("conversion")))
	r.Header.Set("User-Agent", "test-agent")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	var resp analyzeResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode analyze response: %v", err)
		}
	}
	return w, resp
}

func identityCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName {
			return c
		}
	}
	t.Fatal("response did not set identity cookie")
	return nil
}

func TestAnalyzeHappyPath(t *testing.T) {
	handler, store := newTestServer()

	w, resp := doAnalyze(t, handler, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w.Code, w.Body.String())
	}
	if resp.SessionID == "" {
		t.Fatal("response has no session id")
	}
	if err := resp.Scores.Validate(); err != nil {
		t.Fatalf("response scores out of range: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Fatal("response has no recommendations")
	}
	identityCookie(t, w)

	doc, err := store.Get(context.Background(), analytics.CollAnalysisSessions, resp.SessionID)
	if err != nil || doc == nil {
		t.Fatalf("session document not persisted: doc=%v err=%v", doc, err)
	}
	if got := docstore.String(doc, "objective"); got != "conversion" {
		t.Fatalf("got objective=%q, want conversion", got)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	handler, _ := newTestServer()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing image", map[string]any{
			"targeting_description": "young professionals interested in fitness",
			"campaign_objective":    "conversion",
		}},
		{"image is not a data uri or url", map[string]any{
			"image_content":         "just some text",
			"targeting_description": "young professionals interested in fitness",
			"campaign_objective":    "conversion",
		}},
		{"data uri without base64", map[string]any{
			"image_content":         "data:image/png,rawbytes",
			"targeting_description": "young professionals interested in fitness",
			"campaign_objective":    "conversion",
		}},
		{"short targeting", map[string]any{
			"image_content":         "https://cdn.example.com/ad.png",
			"targeting_description": "short",
			"campaign_objective":    "conversion",
		}},
		{"unknown objective", map[string]any{
			"image_content":         "https://cdn.example.com/ad.png",
			"targeting_description": "young professionals interested in fitness",
			"campaign_objective":    "brand_lift",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			r := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewReader(body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400", w.Code)
			}
		})
	}
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	handler, _ := newTestServer()

	r := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want 405", w.Code)
	}
}

func TestFeedbackFlow(t *testing.T) {
	handler, store := newTestServer()

	w, resp := doAnalyze(t, handler, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze failed: %d", w.Code)
	}
	cookie := identityCookie(t, w)

	body, _ := json.Marshal(map[string]any{
		"session_id":        resp.SessionID,
		"overall_rating":    5,
		"accuracy_rating":   4,
		"usefulness_rating": 4,
		"feedback_text":     "spot on about the weak call to action",
		"would_recommend":   true,
		"will_use_again":    true,
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader(body))
	r.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, r)
	if w2.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w2.Code, w2.Body.String())
	}

	session, _ := store.Get(context.Background(), analytics.CollAnalysisSessions, resp.SessionID)
	if got := docstore.Int(session, "user_rating"); got != 5 {
		t.Fatalf("got user_rating=%d, want 5", got)
	}
	if !docstore.Bool(session, "was_helpful") {
		t.Fatal("session not marked helpful after 5-star rating")
	}
}

func TestFeedbackValidation(t *testing.T) {
	handler, _ := newTestServer()

	body, _ := json.Marshal(map[string]any{
		"session_id":        "",
		"overall_rating":    5,
		"accuracy_rating":   4,
		"usefulness_rating": 4,
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestHistoryFlow(t *testing.T) {
	handler, _ := newTestServer()

	w, _ := doAnalyze(t, handler, nil)
	cookie := identityCookie(t, w)
	w2, _ := doAnalyze(t, handler, []*http.Cookie{cookie})
	cookie = identityCookie(t, w2)

	r := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	r.AddCookie(cookie)
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, r)
	if w3.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w3.Code, w3.Body.String())
	}

	var sessions []*models.AnalysisSession
	if err := json.Unmarshal(w3.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	handler, _ := newTestServer()

	r := httptest.NewRequest(http.MethodGet, "/v1/history?limit=0", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestDailyStats(t *testing.T) {
	handler, _ := newTestServer()

	if w, _ := doAnalyze(t, handler, nil); w.Code != http.StatusOK {
		t.Fatalf("analyze failed: %d", w.Code)
	}

	today := time.Now().UTC().Format("2006-01-02")
	r := httptest.NewRequest(http.MethodGet, "/v1/stats/daily?date="+today, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w.Code, w.Body.String())
	}

	var stats models.DailyStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalAnalyses != 1 {
		t.Fatalf("got total_analyses=%d, want 1", stats.TotalAnalyses)
	}
	if stats.TopObjectives["conversion"] != 1 {
		t.Fatalf("got top_objectives=%v, want conversion:1", stats.TopObjectives)
	}
}

func TestDailyStatsAbsentDay(t *testing.T) {
	handler, _ := newTestServer()

	r := httptest.NewRequest(http.MethodGet, "/v1/stats/daily?date=2020-01-01", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}

	var stats models.DailyStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Date != "2020-01-01" || stats.TotalAnalyses != 0 {
		t.Fatalf("got %+v, want zeroed stats for 2020-01-01", stats)
	}
}

func TestDailyStatsBadDate(t *testing.T) {
	handler, _ := newTestServer()

	r := httptest.NewRequest(http.MethodGet, "/v1/stats/daily?date=yesterday", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestErrorLogEndpoint(t *testing.T) {
	handler, store := newTestServer()

	for i := 0; i < 3; i++ {
		_ = store.Create(context.Background(), analytics.CollErrorLogs, fmt.Sprintf("e%d", i), docstore.Document{
			"context":    "aggregator.record_analysis.count",
			"error":      "store unavailable",
			"created_at": time.Now().UTC(),
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/errors?limit=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w.Code, w.Body.String())
	}

	var entries []docstore.Document
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode error log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
}

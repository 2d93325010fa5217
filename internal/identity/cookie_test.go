package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/admetrica/creativescope/internal/models"
)

func TestCookieStorageRoundTrip(t *testing.T) {
	// First request: no cookie, identity generated and set on the response.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)

	first := NewResolver(NewCookieStorage(w, r), models.DeviceInfo{Language: "en-US"}).Resolve()

	cookies := w.Result().Cookies()
	var identityCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == CookieName {
			identityCookie = c
		}
	}
	if identityCookie == nil {
		t.Fatalf("response did not set %s cookie", CookieName)
	}
	if !identityCookie.HttpOnly {
		t.Fatal("identity cookie must be HttpOnly")
	}

	// Second request carries the cookie back: same identity, bumped session.
	w2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	r2.AddCookie(identityCookie)

	second := NewResolver(NewCookieStorage(w2, r2), models.DeviceInfo{Language: "en-US"}).Resolve()
	if second.ID != first.ID {
		t.Fatalf("got id %q on second request, want %q", second.ID, first.ID)
	}
	if second.SessionCount != first.SessionCount+1 {
		t.Fatalf("got session_count=%d, want %d", second.SessionCount, first.SessionCount+1)
	}
}

func TestCookieStorageGarbageCookie(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "not-base64!!"})

	// A corrupt cookie falls through to a fresh identity.
	id := NewResolver(NewCookieStorage(w, r), models.DeviceInfo{}).Resolve()
	if id == nil || id.ID == "" {
		t.Fatal("corrupt cookie broke identity resolution")
	}
	if id.SessionCount != 1 {
		t.Fatalf("got session_count=%d, want 1 for fresh identity", id.SessionCount)
	}
}

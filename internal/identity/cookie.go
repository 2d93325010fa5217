package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/admetrica/creativescope/internal/models"
)

// CookieName is the cookie carrying the anonymous identity between requests.
const CookieName = "cs_anon"

const cookieMaxAge = 365 * 24 * time.Hour

// CookieStorage persists the identity in a browser cookie, the server-side
// analog of the original client's local storage. One instance is built per
// request.
type CookieStorage struct {
	req  *http.Request
	resp http.ResponseWriter
}

// NewCookieStorage creates cookie-backed storage for one request/response pair.
func NewCookieStorage(w http.ResponseWriter, r *http.Request) *CookieStorage {
	return &CookieStorage{req: r, resp: w}
}

func (c *CookieStorage) Load() (*models.AnonymousIdentity, error) {
	cookie, err := c.req.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identity cookie: %w", err)
	}

	var id models.AnonymousIdentity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("failed to parse identity cookie: %w", err)
	}
	return &id, nil
}

func (c *CookieStorage) Save(id *models.AnonymousIdentity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}

	http.SetCookie(c.resp, &http.Cookie{
		Name:     CookieName,
		Value:    base64.URLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

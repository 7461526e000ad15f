// Package cookies owns the names and attributes of the cookies the API sets.
package cookies

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/core/security"
)

const (
	SessionName = "session_token"
	CSRFName    = "csrf_token"
	CSRFHeader  = "X-CSRF-Token"
)

// Issuer writes and clears the session and CSRF cookies.
type Issuer struct {
	// Secure is set in production so cookies only travel over TLS.
	Secure bool
	TTL    time.Duration
}

func NewIssuer(secure bool, ttl time.Duration) *Issuer {
	return &Issuer{Secure: secure, TTL: ttl}
}

// SetSession stores token in the HttpOnly session cookie.
func (i *Issuer) SetSession(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.TTL.Seconds()),
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IssueCSRF sets a fresh CSRF cookie and returns its value. The cookie is
// readable by scripts so the client can echo it in CSRFHeader.
func (i *Issuer) IssueCSRF(c echo.Context) (string, error) {
	token, err := security.NewToken(security.SessionTokenBytes)
	if err != nil {
		return "", err
	}
	c.SetCookie(&http.Cookie{
		Name:     CSRFName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.TTL.Seconds()),
		HttpOnly: false,
		Secure:   i.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// Clear expires both cookies.
func (i *Issuer) Clear(c echo.Context) {
	for _, ck := range []struct {
		name     string
		httpOnly bool
		sameSite http.SameSite
	}{
		{SessionName, true, http.SameSiteLaxMode},
		{CSRFName, false, http.SameSiteStrictMode},
	} {
		c.SetCookie(&http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: ck.httpOnly,
			Secure:   i.Secure,
			SameSite: ck.sameSite,
		})
	}
}

// SessionToken returns the session cookie value, or "".
func SessionToken(c echo.Context) string {
	ck, err := c.Cookie(SessionName)
	if err != nil {
		return ""
	}
	return ck.Value
}

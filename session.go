package serverAuth

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Sign signs payload into a session token valid for 24 hours.
func (a *ServerAuth) Sign(payload Payload) (SignedToken, error) {
	start := time.Now()
	signed, err := a.codec.Sign(payload)
	a.metrics.Observe(MetricSignLatency, time.Since(start))
	return signed, err
}

// Verify checks a session token and returns its payload. Failures wrap one of
// ErrMalformed, ErrInvalidSignature or ErrExpired.
func (a *ServerAuth) Verify(value string) (Payload, error) {
	return a.codec.Verify(value)
}

// Session recovers the payload of the session cookie carried by r. Any failure,
// including a missing cookie, yields (nil, false).
func (a *ServerAuth) Session(r *http.Request) (Payload, bool) {
	cookie, err := r.Cookie(a.cfg.Cookie.Name)
	if err != nil || cookie.Value == "" {
		a.metrics.Inc(MetricSessionAbsent)
		return nil, false
	}

	payload, err := a.codec.Verify(cookie.Value)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			a.metrics.Inc(MetricSessionExpired)
		} else {
			a.metrics.Inc(MetricSessionInvalid)
		}

		ctx := r.Context()
		id := RequestIDFromContext(ctx)
		a.logger.WithFields(logrus.Fields{
			"request_id": id,
			"path":       r.URL.Path,
		}).WithError(err).Debug("session cookie rejected")

		if a.audit != nil {
			a.audit.Emit(ctx, AuditEvent{
				Timestamp: a.now().UTC(),
				EventType: auditEventSessionInvalid,
				RequestID: id,
				Path:      r.URL.Path,
				Error:     err.Error(),
			})
		}
		return nil, false
	}

	a.metrics.Inc(MetricSessionValid)
	return payload, true
}

// SessionCookie builds the cookie that carries signed. It is HttpOnly and expires
// together with the token.
func (a *ServerAuth) SessionCookie(signed SignedToken) *http.Cookie {
	c := a.baseCookie()
	c.Value = signed.Value
	c.Expires = signed.ExpiresAt.UTC()
	return c
}

// ExpiredSessionCookie builds a cookie that makes the client drop its session.
func (a *ServerAuth) ExpiredSessionCookie() *http.Cookie {
	c := a.baseCookie()
	c.Expires = time.Unix(0, 0).UTC()
	c.MaxAge = -1
	return c
}

func (a *ServerAuth) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.Cookie.Name,
		Path:     a.cfg.Cookie.Path,
		Domain:   a.cfg.Cookie.Domain,
		Secure:   a.cfg.Cookie.Secure,
		HttpOnly: true,
		SameSite: a.cfg.Cookie.SameSite,
	}
}

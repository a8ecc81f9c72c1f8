package middleware

import (
	"context"
	"net/http"

	serverAuth "github.com/MrEthical07/serverAuth"
)

type sessionContextKey struct{}

// sessionState is what LoadSession stored for a request. A nil payload records a
// request that was checked and carried no valid session.
type sessionState struct {
	payload serverAuth.Payload
}

func loadedSession(ctx context.Context) (sessionState, bool) {
	st, ok := ctx.Value(sessionContextKey{}).(sessionState)
	return st, ok
}

// SessionFromContext returns the verified session attached by LoadSession. ok is
// false when the request carried no valid session.
func SessionFromContext(ctx context.Context) (serverAuth.Payload, bool) {
	st, _ := loadedSession(ctx)
	return st.payload, st.payload != nil
}

// LoadSession verifies the session cookie once per request and exposes the result
// through SessionFromContext. Requests without a valid session still reach next.
func LoadSession(auth *serverAuth.ServerAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			var st sessionState
			if payload, ok := auth.Session(r); ok {
				st.payload = payload.Clone()
			}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession continues only for requests with a valid session and redirects
// everything else to loginURL with a 307. Behind LoadSession the cookie is not
// verified again.
func RequireSession(auth *serverAuth.ServerAuth, loginURL string) Func {
	return func(r *http.Request, _ *serverAuth.Response) Outcome {
		if st, checked := loadedSession(r.Context()); checked {
			if st.payload != nil {
				return Continue()
			}
			return Redirect(loginURL, false)
		}
		if auth != nil {
			if _, ok := auth.Session(r); ok {
				return Continue()
			}
		}
		return Redirect(loginURL, false)
	}
}

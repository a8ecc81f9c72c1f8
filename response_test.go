package serverAuth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestOrigin(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *http.Request
		want  string
	}{
		{
			name: "absolute request url",
			setup: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "http://example.com:8080/a/b?c=d", nil)
			},
			want: "http://example.com:8080",
		},
		{
			name: "tls",
			setup: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/a", nil)
				r.Host = "secure.example.com"
				r.TLS = &tls.ConnectionState{}
				return r
			},
			want: "https://secure.example.com",
		},
		{
			name: "forwarded proto",
			setup: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/a", nil)
				r.Host = "proxied.example.com"
				r.Header.Set("X-Forwarded-Proto", "https")
				return r
			},
			want: "https://proxied.example.com",
		},
		{
			name: "bogus forwarded proto ignored",
			setup: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/a", nil)
				r.Host = "plain.example.com"
				r.Header.Set("X-Forwarded-Proto", "javascript")
				return r
			},
			want: "http://plain.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestOrigin(tt.setup()).String())
		})
	}
}

func TestResolveURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/deep/page", nil)

	got, err := ResolveURL(req, "/x")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/x", got)

	got, err = ResolveURL(req, "https://other.example.org/y")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.org/y", got)

	got, err = ResolveURL(req, "login?next=1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/login?next=1", got)

	_, err = ResolveURL(req, "http://[::1")
	assert.Error(t, err)
}

func TestRequestURLIsAbsolute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/a?b=c", nil)
	assert.Equal(t, "http://example.com/a?b=c", RequestURL(req).String())
}

func TestResponseRender(t *testing.T) {
	res := JSONResponse(http.StatusCreated, map[string]string{"ok": "yes"})
	res.SetCookie(&http.Cookie{Name: "a", Value: "1"})
	res.SetCookie(nil)

	rec := httptest.NewRecorder()
	res.Render(rec)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "a=1")
	assert.Len(t, res.Cookies(), 1)
}

func TestResponsePassThrough(t *testing.T) {
	res := NextResponse()
	assert.True(t, res.IsPassThrough())
	assert.False(t, RedirectResponse("/x", http.StatusFound).IsPassThrough())

	rec := httptest.NewRecorder()
	res.Render(rec)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJSONResponseUnencodable(t *testing.T) {
	res := JSONResponse(http.StatusOK, map[string]any{"f": func() {}})
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestRequestIDSources(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	generated := requestID(req)
	assert.Len(t, generated, 36)

	req.Header.Set(RequestIDHeader, "from-header")
	assert.Equal(t, "from-header", requestID(req))

	req = req.WithContext(WithRequestID(req.Context(), "from-context"))
	assert.Equal(t, "from-context", requestID(req))
}

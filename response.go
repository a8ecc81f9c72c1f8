package serverAuth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Response is the response artifact produced by the dispatcher and threaded through
// the middleware pipeline. A zero StatusCode marks a pass-through response: the
// request continues to the host handler with Header and cookies applied.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	cookies []*http.Cookie
}

// NextResponse returns an empty pass-through response.
func NextResponse() *Response {
	return &Response{Header: make(http.Header)}
}

// RedirectResponse returns a response pointing the client at location.
func RedirectResponse(location string, status int) *Response {
	res := &Response{StatusCode: status, Header: make(http.Header)}
	res.Header.Set("Location", location)
	return res
}

// JSONResponse returns a response with v encoded as the JSON body.
func JSONResponse(status int, v any) *Response {
	res := &Response{StatusCode: status, Header: make(http.Header)}
	body, err := json.Marshal(v)
	if err != nil {
		res.StatusCode = http.StatusInternalServerError
		body = []byte(`{"message":"Internal Server Error"}`)
	}
	res.Header.Set("Content-Type", "application/json")
	res.Body = body
	return res
}

func messageResponse(status int, message string) *Response {
	return JSONResponse(status, map[string]string{"message": message})
}

// IsPassThrough reports whether r lets the request continue.
func (r *Response) IsPassThrough() bool {
	return r != nil && r.StatusCode == 0
}

// SetCookie appends c to the cookies written with the response.
func (r *Response) SetCookie(c *http.Cookie) {
	if c == nil {
		return
	}
	r.cookies = append(r.cookies, c)
}

// Cookies returns the cookies attached so far.
func (r *Response) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, len(r.cookies))
	copy(out, r.cookies)
	return out
}

// Cookie returns the last attached cookie named name, or nil.
func (r *Response) Cookie(name string) *http.Cookie {
	for i := len(r.cookies) - 1; i >= 0; i-- {
		if r.cookies[i].Name == name {
			return r.cookies[i]
		}
	}
	return nil
}

// ApplyHeaders copies headers and cookies onto w without writing a status.
func (r *Response) ApplyHeaders(w http.ResponseWriter) {
	dst := w.Header()
	for key, values := range r.Header {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, c := range r.cookies {
		http.SetCookie(w, c)
	}
}

// Render writes the full response to w. A pass-through response renders as 200.
func (r *Response) Render(w http.ResponseWriter) {
	r.ApplyHeaders(w)
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// RequestOrigin returns scheme://host of the request.
func RequestOrigin(r *http.Request) *url.URL {
	origin := &url.URL{Scheme: "http", Host: r.Host}
	switch {
	case r.URL != nil && r.URL.IsAbs():
		origin.Scheme = r.URL.Scheme
		origin.Host = r.URL.Host
	case r.TLS != nil:
		origin.Scheme = "https"
	default:
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
			origin.Scheme = proto
		}
	}
	if origin.Host == "" && r.URL != nil {
		origin.Host = r.URL.Host
	}
	return origin
}

// RequestURL returns the absolute URL of the request.
func RequestURL(r *http.Request) *url.URL {
	u := *r.URL
	origin := RequestOrigin(r)
	u.Scheme = origin.Scheme
	u.Host = origin.Host
	return &u
}

// ResolveURL leaves absolute URLs untouched and resolves anything else against
// the request origin.
func ResolveURL(r *http.Request, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse redirect target %q: %w", target, err)
	}
	if u.IsAbs() {
		return target, nil
	}
	return RequestOrigin(r).ResolveReference(u).String(), nil
}

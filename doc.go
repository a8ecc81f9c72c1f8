// Package serverAuth issues signed session cookies and dispatches sign-in,
// sign-up and sign-out requests for a net/http server.
//
// A [ServerAuth] is assembled with [Builder] and is safe for concurrent use once
// built. Sessions are compact HS256 tokens (see package token) carried in an
// HttpOnly cookie and valid for 24 hours. Nothing is stored server side, so a
// token stays valid until it expires.
//
// # Flow
//
// [ServerAuth.Handle] resolves POST requests against a path table. A sign-in reads
// a form-encoded body, passes it through the configured [Actions] hooks and answers
// with a 303 redirect that sets the session cookie. Sign-up and sign-out are
// [ActionHandler] slots left to the host.
//
// [ServerAuth.Session] recovers the payload of an inbound request. Every failure
// downgrades the request to unauthenticated; it never surfaces an error.
//
// The middleware sub-package runs an ordered pipeline of checks in front of a host
// handler, with at most one terminal redirect per request.
package serverAuth

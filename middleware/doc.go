// Package middleware runs ordered request checks in front of a host handler,
// built on top of serverAuth.Response and serverAuth.ServerAuth sessions.
//
// # Pipeline
//
//   - [Stack.Run] invokes each [Func] in order with the shared response.
//   - [Continue] passes control on; [Redirect] ends the run with 307 or 308.
//   - Any other outcome is a [ContractError] naming the middleware.
//
// # Session helpers
//
// [LoadSession] verifies the session cookie and stores the payload in the request
// context. [RequireSession] redirects unauthenticated requests to a login URL.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly (delegates to ServerAuth).
//   - Run middleware concurrently: later middleware may depend on earlier headers.
package middleware

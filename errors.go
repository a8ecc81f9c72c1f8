package serverAuth

import (
	"errors"

	"github.com/MrEthical07/serverAuth/token"
)

var (
	// ErrConfiguration wraps every configuration problem reported by Build or Validate.
	ErrConfiguration = errors.New("invalid server auth configuration")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")

	// ErrEncoding is returned when a session payload cannot be serialized for signing.
	ErrEncoding = token.ErrEncoding
	// ErrMalformed marks a session token that cannot be parsed.
	ErrMalformed = token.ErrMalformed
	// ErrInvalidSignature marks a session token whose signature does not verify.
	ErrInvalidSignature = token.ErrInvalidSignature
	// ErrExpired marks a session token past its expiry.
	ErrExpired = token.ErrExpired

	// ErrBadRequest marks a sign-in request with a missing or unsupported body encoding.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound marks a request path that maps to no action.
	ErrNotFound = errors.New("not found")
	// ErrNotImplemented marks an action or body encoding without an implementation.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidMiddlewareContract marks a middleware that returned an unrecognized outcome.
	ErrInvalidMiddlewareContract = errors.New("invalid middleware contract")
)

// IsInvalidSession reports whether err is one of the verification failures that
// downgrade a request to unauthenticated.
func IsInvalidSession(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired)
}

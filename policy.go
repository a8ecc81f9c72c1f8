package serverAuth

import (
	"context"

	"github.com/MrEthical07/serverAuth/token"
)

// Payload is a session payload: application-defined fields bound into a token.
type Payload = token.Payload

// SignedToken is a signed session token with its issue and expiry times.
type SignedToken = token.SignedToken

// CredentialMapper extracts session fields from the raw sign-in payload
// (configuration key actions.signin). It may perform I/O such as a user lookup.
type CredentialMapper func(ctx context.Context, raw Payload) (Payload, error)

// SessionFinalizer post-processes session fields right before signing
// (configuration key actions.signingCookie).
type SessionFinalizer func(ctx context.Context, fields Payload) (Payload, error)

// Actions groups the optional sign-in hooks. A nil hook behaves as identity.
type Actions struct {
	SignIn        CredentialMapper
	SigningCookie SessionFinalizer
}

// BuildSession turns the raw credential payload into the session payload by
// applying actions.SignIn and then actions.SigningCookie.
//
// raw is never mutated: hooks receive copies and the result is always a new map.
// Hook errors are returned unchanged.
func BuildSession(ctx context.Context, raw Payload, actions Actions) (Payload, error) {
	fields := raw.Clone()
	if actions.SignIn != nil {
		mapped, err := actions.SignIn(ctx, fields)
		if err != nil {
			return nil, err
		}
		fields = mapped.Clone()
	}

	if actions.SigningCookie != nil {
		finalized, err := actions.SigningCookie(ctx, fields.Clone())
		if err != nil {
			return nil, err
		}
		fields = finalized.Clone()
	}

	return fields, nil
}

package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Algorithm is the only JWS algorithm issued and accepted.
	Algorithm = "HS256"
	// Lifetime is the fixed validity window of every signed session.
	Lifetime = 24 * time.Hour
)

const (
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimNotBefore = "nbf"
)

var reservedClaims = [...]string{claimIssuedAt, claimExpiresAt, claimNotBefore}

var (
	// ErrMissingSecret is returned by NewCodec when no signing key is configured.
	ErrMissingSecret = errors.New("session secret is required")
	// ErrEncoding is returned by Sign when the payload cannot be serialized.
	ErrEncoding = errors.New("session payload cannot be encoded")
	// ErrMalformed is returned by Verify when the token cannot be parsed.
	ErrMalformed = errors.New("session token malformed")
	// ErrInvalidSignature is returned by Verify when the signature does not match.
	ErrInvalidSignature = errors.New("session token signature invalid")
	// ErrExpired is returned by Verify once the token lifetime has elapsed.
	ErrExpired = errors.New("session token expired")
)

// Payload is the application-defined content of a session. Values must be
// JSON-serializable; after verification numbers come back as float64.
type Payload map[string]any

// Clone returns a shallow copy of p. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ReservedClaim returns the first codec-owned timing claim (iat, exp, nbf) that
// p carries.
func ReservedClaim(p Payload) (string, bool) {
	for _, key := range reservedClaims {
		if _, ok := p[key]; ok {
			return key, true
		}
	}
	return "", false
}

// SignedToken is a compact token together with the timing it was issued with.
type SignedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config configures a Codec.
type Config struct {
	Secret []byte
	// Now overrides the clock used for issuing and expiry checks.
	Now func() time.Time
}

// Codec signs and verifies session tokens with a symmetric secret.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{secret: secret, now: now}, nil
}

// Sign binds payload into a token issued now and expiring after Lifetime.
//
// The registered timing claims (iat, exp, nbf) are owned by the codec; a payload
// carrying any of them is rejected with ErrEncoding so verification stays lossless.
func (c *Codec) Sign(payload Payload) (SignedToken, error) {
	if key, ok := ReservedClaim(payload); ok {
		return SignedToken{}, fmt.Errorf("%w: key %q is reserved", ErrEncoding, key)
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(Lifetime)

	claims := make(jwt.MapClaims, len(payload)+2)
	for k, v := range payload {
		claims[k] = v
	}
	claims[claimIssuedAt] = jwt.NewNumericDate(issuedAt)
	claims[claimExpiresAt] = jwt.NewNumericDate(expiresAt)

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return SignedToken{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature and expiry of tokenStr and returns the payload it
// was signed with. Failures are one of ErrMalformed, ErrInvalidSignature or ErrExpired.
func (c *Codec) Verify(tokenStr string) (Payload, error) {
	parser := c.newParser()

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, c.classify(tokenStr, err)
	}

	payload := make(Payload, len(claims))
	for k, v := range claims {
		if k == claimIssuedAt || k == claimExpiresAt {
			continue
		}
		payload[k] = v
	}

	return payload, nil
}

func (c *Codec) newParser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
}

// classify folds parser errors into the codec taxonomy. The signature is checked
// before the claims, so a tampered expired token reports ErrInvalidSignature.
func (c *Codec) classify(tokenStr string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		if c.onlySignatureBroken(tokenStr) {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// onlySignatureBroken reports whether tokenStr has three segments whose header and
// claims decode to JSON objects, which leaves the signature segment as the cause
// of a parse failure.
func (c *Codec) onlySignatureBroken(tokenStr string) bool {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return false
	}

	parser := c.newParser()
	for _, seg := range parts[:2] {
		raw, err := parser.DecodeSegment(seg)
		if err != nil {
			return false
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return false
		}
	}
	return true
}

package serverAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSessionIdentityWithoutHooks(t *testing.T) {
	raw := Payload{"user": "alice"}
	got, err := BuildSession(context.Background(), raw, Actions{})
	require.NoError(t, err)

	assert.Equal(t, Payload{"user": "alice"}, got)
	got["user"] = "bob"
	assert.Equal(t, "alice", raw["user"])
}

func TestBuildSessionComposesHooks(t *testing.T) {
	actions := Actions{
		SignIn: func(_ context.Context, p Payload) (Payload, error) {
			return Payload{"id": p["user"]}, nil
		},
		SigningCookie: func(_ context.Context, s Payload) (Payload, error) {
			out := s.Clone()
			out["role"] = "guest"
			return out, nil
		},
	}

	got, err := BuildSession(context.Background(), Payload{"user": "alice"}, actions)
	require.NoError(t, err)
	assert.Equal(t, Payload{"id": "alice", "role": "guest"}, got)
}

func TestBuildSessionHooksCannotMutateRaw(t *testing.T) {
	raw := Payload{"user": "alice"}
	actions := Actions{
		SignIn: func(_ context.Context, p Payload) (Payload, error) {
			p["user"] = "mallory"
			p["admin"] = true
			return p, nil
		},
		SigningCookie: func(_ context.Context, s Payload) (Payload, error) {
			delete(s, "user")
			return s, nil
		},
	}

	got, err := BuildSession(context.Background(), raw, actions)
	require.NoError(t, err)
	assert.Equal(t, Payload{"admin": true}, got)
	assert.Equal(t, Payload{"user": "alice"}, raw)
}

func TestBuildSessionFinalizerOnly(t *testing.T) {
	actions := Actions{
		SigningCookie: func(_ context.Context, s Payload) (Payload, error) {
			s["tier"] = "free"
			return s, nil
		},
	}
	got, err := BuildSession(context.Background(), Payload{"user": "alice"}, actions)
	require.NoError(t, err)
	assert.Equal(t, Payload{"user": "alice", "tier": "free"}, got)
}

func TestBuildSessionNilHookResultIsEmpty(t *testing.T) {
	actions := Actions{
		SignIn: func(context.Context, Payload) (Payload, error) { return nil, nil },
	}
	got, err := BuildSession(context.Background(), Payload{"user": "alice"}, actions)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildSessionHookErrorsUnchanged(t *testing.T) {
	mapErr := errors.New("lookup failed")
	_, err := BuildSession(context.Background(), Payload{}, Actions{
		SignIn: func(context.Context, Payload) (Payload, error) { return nil, mapErr },
	})
	assert.Same(t, mapErr, err)

	finalErr := errors.New("finalize failed")
	_, err = BuildSession(context.Background(), Payload{}, Actions{
		SigningCookie: func(context.Context, Payload) (Payload, error) { return nil, finalErr },
	})
	assert.Same(t, finalErr, err)
}

func TestBuildSessionPassesContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-7")
	var seen []string
	actions := Actions{
		SignIn: func(ctx context.Context, p Payload) (Payload, error) {
			seen = append(seen, RequestIDFromContext(ctx))
			return p, nil
		},
		SigningCookie: func(ctx context.Context, s Payload) (Payload, error) {
			seen = append(seen, RequestIDFromContext(ctx))
			return s, nil
		},
	}
	_, err := BuildSession(ctx, Payload{}, actions)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-7", "req-7"}, seen)
}

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackShortCircuitsOnRedirect(t *testing.T) {
	var calls []string
	a := func(r *http.Request, res *serverAuth.Response) Outcome {
		calls = append(calls, "A")
		return Continue()
	}
	b := func(r *http.Request, res *serverAuth.Response) Outcome {
		calls = append(calls, "B")
		return Redirect("/x", false)
	}
	c := func(r *http.Request, res *serverAuth.Response) Outcome {
		calls = append(calls, "C")
		return Continue()
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/dashboard", nil)
	res, err := New(a, b, c).Run(req)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, calls)
	assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode)
	assert.Equal(t, "http://example.com/x", res.Header.Get("Location"))
}

func TestStackPermanentRedirect(t *testing.T) {
	stack := New().Use("moved", func(*http.Request, *serverAuth.Response) Outcome {
		return Redirect("/new-home", true)
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/old", nil)
	res, err := stack.Run(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPermanentRedirect, res.StatusCode)
	assert.Equal(t, "http://example.com/new-home", res.Header.Get("Location"))
}

func TestStackAbsoluteRedirectUnchanged(t *testing.T) {
	stack := New(func(*http.Request, *serverAuth.Response) Outcome {
		return Redirect("https://login.example.org/start?next=%2F", false)
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	res, err := stack.Run(req)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.org/start?next=%2F", res.Header.Get("Location"))
}

func TestStackRedirectResolvesAgainstTLSOrigin(t *testing.T) {
	stack := New(func(*http.Request, *serverAuth.Response) Outcome {
		return Redirect("login", false)
	})

	req := httptest.NewRequest(http.MethodGet, "/deep/path", nil)
	req.Host = "app.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	res, err := stack.Run(req)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/login", res.Header.Get("Location"))
}

func TestStackAllContinueIsPassThrough(t *testing.T) {
	setter := func(name string) Func {
		return func(r *http.Request, res *serverAuth.Response) Outcome {
			res.Header.Add("X-Seen", name)
			return Continue()
		}
	}
	var seenByLast []string
	last := func(r *http.Request, res *serverAuth.Response) Outcome {
		seenByLast = res.Header.Values("X-Seen")
		return Continue()
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res, err := New(setter("one"), setter("two"), last).Run(req)
	require.NoError(t, err)

	assert.True(t, res.IsPassThrough())
	assert.Equal(t, []string{"one", "two"}, seenByLast)
	assert.Equal(t, []string{"one", "two"}, res.Header.Values("X-Seen"))
}

func TestStackEmptyIsPassThrough(t *testing.T) {
	res, err := New().Run(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, res.IsPassThrough())
}

func TestStackRedirectKeepsCookies(t *testing.T) {
	stack := New(
		func(r *http.Request, res *serverAuth.Response) Outcome {
			res.SetCookie(&http.Cookie{Name: "flash", Value: "hello"})
			res.Header.Set("X-Dropped", "1")
			return Continue()
		},
		func(*http.Request, *serverAuth.Response) Outcome {
			return Redirect("/x", false)
		},
	)

	res, err := stack.Run(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotNil(t, res.Cookie("flash"))
	assert.Empty(t, res.Header.Get("X-Dropped"))
}

func badOutcome(*http.Request, *serverAuth.Response) Outcome {
	return Outcome{}
}

func TestStackInvalidOutcomeNamesMiddleware(t *testing.T) {
	var ranAfter bool
	stack := New(
		func(*http.Request, *serverAuth.Response) Outcome { return Continue() },
		badOutcome,
		func(*http.Request, *serverAuth.Response) Outcome {
			ranAfter = true
			return Continue()
		},
	)

	res, err := stack.Run(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.False(t, ranAfter)
	assert.True(t, errors.Is(err, serverAuth.ErrInvalidMiddlewareContract))

	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "middleware.badOutcome", ce.Middleware)
	assert.Equal(t, 1, ce.Index)
	assert.Contains(t, err.Error(), "badOutcome")
}

func TestStackExplicitNameAndNilFunc(t *testing.T) {
	stack := New().Use("session-guard", nil)
	assert.Equal(t, []string{"session-guard"}, stack.Names())

	_, err := stack.Run(httptest.NewRequest(http.MethodGet, "/", nil))
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "session-guard", ce.Middleware)
}

func TestStackUnparsableRedirectIsContractError(t *testing.T) {
	stack := New().Use("broken", func(*http.Request, *serverAuth.Response) Outcome {
		return Redirect("http://[::1", false)
	})

	_, err := stack.Run(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, serverAuth.ErrInvalidMiddlewareContract)
}

func TestStackLongPipelineRunsIteratively(t *testing.T) {
	stack := New()
	count := 0
	for i := 0; i < 100000; i++ {
		stack.Use("count", func(*http.Request, *serverAuth.Response) Outcome {
			count++
			return Continue()
		})
	}

	res, err := stack.Run(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, res.IsPassThrough())
	assert.Equal(t, 100000, count)
}

func TestHandlerPassThroughCallsNext(t *testing.T) {
	stack := New(RequestURL, func(r *http.Request, res *serverAuth.Response) Outcome {
		res.SetCookie(&http.Cookie{Name: "seen", Value: "1"})
		return Continue()
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	stack.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/a?b=c", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "http://example.com/a?b=c", rec.Header().Get(RequestURLHeader))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "seen=1")
}

func TestHandlerWritesRedirect(t *testing.T) {
	stack := New(func(*http.Request, *serverAuth.Response) Outcome {
		return Redirect("/login", false)
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run after a redirect")
	})

	rec := httptest.NewRecorder()
	stack.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/private", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "http://example.com/login", rec.Header().Get("Location"))
}

func TestHandlerContractErrorIsLoggedAnd500(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	stack := New(badOutcome).WithLogger(logger)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run after a contract error")
	})

	rec := httptest.NewRecorder()
	stack.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "middleware.badOutcome", hook.LastEntry().Data["middleware"])
}

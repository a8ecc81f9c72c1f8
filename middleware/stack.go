package middleware

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/sirupsen/logrus"
)

type outcomeKind uint8

const (
	outcomeInvalid outcomeKind = iota
	outcomeContinue
	outcomeRedirect
)

// Outcome is what a middleware decides for a request. The zero Outcome is not a
// valid decision and fails the pipeline with a *ContractError.
type Outcome struct {
	kind      outcomeKind
	location  string
	permanent bool
}

// Continue hands the request to the next middleware.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Redirect ends the pipeline. Relative targets are resolved against the request
// origin; permanent selects 308 over 307.
func Redirect(url string, permanent bool) Outcome {
	return Outcome{kind: outcomeRedirect, location: url, permanent: permanent}
}

func (o Outcome) IsContinue() bool { return o.kind == outcomeContinue }

func (o Outcome) IsRedirect() bool { return o.kind == outcomeRedirect }

// Location returns the redirect target as given to Redirect.
func (o Outcome) Location() string { return o.location }

func (o Outcome) Permanent() bool { return o.permanent }

// Func inspects a request and the response built so far. It may add headers or
// cookies to res; changes are visible to every later middleware.
type Func func(r *http.Request, res *serverAuth.Response) Outcome

// ContractError reports a middleware that broke the pipeline contract.
type ContractError struct {
	Middleware string
	Index      int
	Reason     string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("middleware %q (#%d): %s", e.Middleware, e.Index, e.Reason)
}

func (e *ContractError) Unwrap() error {
	return serverAuth.ErrInvalidMiddlewareContract
}

type entry struct {
	name string
	fn   Func
}

// Stack is an ordered middleware pipeline. Build it once at startup; Run is safe
// for concurrent use as long as Use is no longer called.
type Stack struct {
	entries []entry
	logger  logrus.FieldLogger
}

// New returns a Stack running funcs in order, each named after its function symbol.
func New(funcs ...Func) *Stack {
	s := &Stack{logger: logrus.StandardLogger()}
	for _, fn := range funcs {
		s.entries = append(s.entries, entry{name: funcName(fn), fn: fn})
	}
	return s
}

// Use appends fn under an explicit name. An empty name falls back to the symbol.
func (s *Stack) Use(name string, fn Func) *Stack {
	if name == "" {
		name = funcName(fn)
	}
	s.entries = append(s.entries, entry{name: name, fn: fn})
	return s
}

// WithLogger sets the logger Handler reports contract errors to.
func (s *Stack) WithLogger(logger logrus.FieldLogger) *Stack {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Names returns the middleware names in execution order.
func (s *Stack) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Run executes the pipeline for r. The returned response is either pass-through
// (IsPassThrough) or a 307/308 redirect. Cookies set before a redirect are kept on
// the redirect response.
func (s *Stack) Run(r *http.Request) (*serverAuth.Response, error) {
	res := serverAuth.NextResponse()

	for i, e := range s.entries {
		if e.fn == nil {
			return nil, &ContractError{Middleware: e.name, Index: i, Reason: "middleware is nil"}
		}

		out := e.fn(r, res)
		switch out.kind {
		case outcomeContinue:
			continue
		case outcomeRedirect:
			location, err := serverAuth.ResolveURL(r, out.location)
			if err != nil {
				return nil, &ContractError{Middleware: e.name, Index: i, Reason: err.Error()}
			}
			status := http.StatusTemporaryRedirect
			if out.permanent {
				status = http.StatusPermanentRedirect
			}
			redirect := serverAuth.RedirectResponse(location, status)
			for _, c := range res.Cookies() {
				redirect.SetCookie(c)
			}
			return redirect, nil
		default:
			return nil, &ContractError{Middleware: e.name, Index: i, Reason: "returned neither Continue nor Redirect"}
		}
	}

	return res, nil
}

// Handler runs the pipeline in front of next. A pass-through result copies the
// accumulated headers and cookies onto w and calls next; a redirect is written
// directly. Contract errors are logged and answered with 500.
func (s *Stack) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Run(r)
		if err != nil {
			log := s.logger.WithError(err).WithField("path", r.URL.Path)
			if ce, ok := err.(*ContractError); ok {
				log = log.WithField("middleware", ce.Middleware)
			}
			log.Error("middleware contract violated")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if !res.IsPassThrough() {
			res.Render(w)
			return
		}

		res.ApplyHeaders(w)
		if next == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func funcName(fn Func) string {
	if fn == nil {
		return "<nil>"
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "<unknown>"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

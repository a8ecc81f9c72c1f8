package serverAuth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/serverAuth/token"
	"github.com/sirupsen/logrus"
)

// Action is the logical authentication action a path maps to.
type Action int

const (
	ActionSignIn Action = iota
	ActionSignUp
	ActionSignOut
)

func (a Action) String() string {
	switch a {
	case ActionSignIn:
		return "signin"
	case ActionSignUp:
		return "signup"
	case ActionSignOut:
		return "signout"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func (a Action) valid() bool {
	return a >= ActionSignIn && a <= ActionSignOut
}

// PathTable maps literal request paths to actions.
type PathTable map[string]Action

// DefaultPaths returns the table used when Config.Paths is nil.
func DefaultPaths() PathTable {
	return PathTable{
		"/signin":  ActionSignIn,
		"/signup":  ActionSignUp,
		"/signout": ActionSignOut,
	}
}

// Resolve looks path up verbatim and then by its last segment, so a handler
// mounted under a prefix ("/api/auth/signin") still resolves "/signin".
func (t PathTable) Resolve(path string) (Action, bool) {
	if action, ok := t[path]; ok {
		return action, true
	}
	if i := strings.LastIndex(path, "/"); i > 0 {
		action, ok := t[path[i:]]
		return action, ok
	}
	return 0, false
}

// Status classifies a dispatch result.
type Status int

const (
	StatusHandled Status = iota
	// StatusUnhandled leaves the request to the host: the method is not POST.
	StatusUnhandled
	StatusNotFound
	StatusBadRequest
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusHandled:
		return "handled"
	case StatusUnhandled:
		return "unhandled"
	case StatusNotFound:
		return "not_found"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of Handle. Response is nil only for StatusUnhandled.
type Result struct {
	Status   Status
	Response *Response
	Reason   string
}

// Handled wraps a response produced by an action.
func Handled(res *Response) Result {
	return Result{Status: StatusHandled, Response: res}
}

// BadRequest builds a 400 result with a human-readable reason.
func BadRequest(reason string) Result {
	return Result{Status: StatusBadRequest, Response: messageResponse(http.StatusBadRequest, reason), Reason: reason}
}

// NotImplemented builds a 501 result.
func NotImplemented(reason string) Result {
	return Result{Status: StatusNotImplemented, Response: messageResponse(http.StatusNotImplemented, reason), Reason: reason}
}

func notFound() Result {
	return Result{Status: StatusNotFound, Response: messageResponse(http.StatusNotFound, "Not Found"), Reason: "Not Found"}
}

// Err maps client-error statuses onto the error taxonomy; handled and unhandled
// results return nil.
func (r Result) Err() error {
	switch r.Status {
	case StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, r.Reason)
	case StatusNotFound:
		return ErrNotFound
	case StatusNotImplemented:
		return fmt.Errorf("%w: %s", ErrNotImplemented, r.Reason)
	default:
		return nil
	}
}

// ActionHandler fills the sign-up and sign-out slots. Its result is returned from
// Handle unchanged; an error is treated as fatal for the request.
type ActionHandler func(ctx context.Context, auth *ServerAuth, r *http.Request) (Result, error)

// NotImplementedHandler is the default for the sign-up and sign-out slots.
func NotImplementedHandler(action Action) ActionHandler {
	return func(context.Context, *ServerAuth, *http.Request) (Result, error) {
		return NotImplemented(fmt.Sprintf("%s is not implemented", action)), nil
	}
}

// ClearSessionHandler is an opt-in sign-out handler: it expires the session cookie
// and sends the client back to the request origin.
func ClearSessionHandler(_ context.Context, auth *ServerAuth, r *http.Request) (Result, error) {
	res := RedirectResponse(RequestOrigin(r).String(), http.StatusSeeOther)
	res.SetCookie(auth.ExpiredSessionCookie())
	return Handled(res), nil
}

const (
	mediaTypeJSON = "application/json"
	mediaTypeForm = "application/x-www-form-urlencoded"
)

// Handle routes an inbound request to its action. Expected client errors come back
// as results; the error return is reserved for hook, handler and encoding failures.
func (a *ServerAuth) Handle(r *http.Request) (Result, error) {
	id := requestID(r)
	ctx := WithRequestID(r.Context(), id)
	log := a.logger.WithFields(logrus.Fields{"request_id": id, "path": r.URL.Path})

	if r.Method != http.MethodPost {
		a.metrics.Inc(MetricUnhandled)
		return Result{Status: StatusUnhandled}, nil
	}

	action, ok := a.paths.Resolve(r.URL.Path)
	if !ok {
		a.metrics.Inc(MetricNotFound)
		log.Debug("no action mapped to path")
		return notFound(), nil
	}
	log = log.WithField("action", action.String())

	switch action {
	case ActionSignIn:
		return a.signIn(ctx, r, log)
	case ActionSignUp:
		a.metrics.Inc(MetricSignUp)
		return a.runSlot(ctx, r, log, auditEventSignUp, a.signUp)
	case ActionSignOut:
		a.metrics.Inc(MetricSignOut)
		return a.runSlot(ctx, r, log, auditEventSignOut, a.signOut)
	default:
		return notFound(), nil
	}
}

func (a *ServerAuth) runSlot(ctx context.Context, r *http.Request, log logrus.FieldLogger, event string, handler ActionHandler) (Result, error) {
	result, err := handler(ctx, a, r.WithContext(ctx))
	if err != nil {
		log.WithError(err).Error("action handler failed")
		a.emitAudit(ctx, r, event, false, err.Error())
		return Result{}, err
	}
	a.emitAudit(ctx, r, event, result.Status == StatusHandled, result.Reason)
	return result, nil
}

func (a *ServerAuth) signIn(ctx context.Context, r *http.Request, log logrus.FieldLogger) (Result, error) {
	raw, rejected := a.decodeSignIn(r)
	if rejected != nil {
		switch rejected.Status {
		case StatusNotImplemented:
			a.metrics.Inc(MetricSignInNotImplemented)
		default:
			a.metrics.Inc(MetricSignInBadRequest)
		}
		log.WithField("reason", rejected.Reason).Info("sign-in rejected")
		a.emitAudit(ctx, r, auditEventSignIn, false, rejected.Reason)
		return *rejected, nil
	}

	session, err := BuildSession(ctx, raw, a.cfg.Actions)
	if err != nil {
		a.metrics.Inc(MetricSignInFailure)
		log.WithError(err).Error("sign-in hook failed")
		a.emitAudit(ctx, r, auditEventSignIn, false, err.Error())
		return Result{}, err
	}

	signed, err := a.Sign(session)
	if err != nil {
		a.metrics.Inc(MetricSignInFailure)
		log.WithError(err).Error("sign-in session could not be signed")
		a.emitAudit(ctx, r, auditEventSignIn, false, err.Error())
		return Result{}, err
	}

	res := RedirectResponse(RequestOrigin(r).String(), http.StatusSeeOther)
	res.SetCookie(a.SessionCookie(signed))

	a.metrics.Inc(MetricSignInSuccess)
	log.WithField("expires_at", signed.ExpiresAt.Format(time.RFC3339)).Info("session issued")
	a.emitAudit(ctx, r, auditEventSignIn, true, "")

	return Handled(res), nil
}

// decodeSignIn reads the raw sign-in payload. The content type is checked before
// the body is touched.
func (a *ServerAuth) decodeSignIn(r *http.Request) (Payload, *Result) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		res := BadRequest("Content-Type header not found")
		return nil, &res
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		res := BadRequest("Invalid Content-Type header")
		return nil, &res
	}

	switch mediaType {
	case mediaTypeJSON:
		res := NotImplemented("JSON sign-in is not implemented")
		return nil, &res
	case mediaTypeForm:
	default:
		res := BadRequest("Invalid Content-Type header")
		return nil, &res
	}

	if r.Body == nil {
		return Payload{}, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, a.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res := BadRequest("request body too large")
			return nil, &res
		}
		res := BadRequest("request body could not be read")
		return nil, &res
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		res := BadRequest("invalid form body")
		return nil, &res
	}

	raw := make(Payload, len(values))
	for key, vs := range values {
		if len(vs) == 0 {
			continue
		}
		// repeated keys: the last occurrence wins
		raw[key] = vs[len(vs)-1]
	}

	// timing claims belong to the codec, not to the client
	if key, ok := token.ReservedClaim(raw); ok {
		res := BadRequest(fmt.Sprintf("reserved field %q", key))
		return nil, &res
	}

	return raw, nil
}

// Handler adapts Handle to net/http. Unhandled requests go to fallback; with a nil
// fallback they are answered 405 with Allow: POST.
func (a *ServerAuth) Handler(fallback http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := a.Handle(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if result.Status == StatusUnhandled {
			if fallback != nil {
				fallback.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		if result.Response == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		result.Response.Render(w)
	})
}

func (a *ServerAuth) emitAudit(ctx context.Context, r *http.Request, eventType string, success bool, reason string) {
	if a.audit == nil {
		return
	}
	a.audit.Emit(ctx, AuditEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		RequestID: RequestIDFromContext(ctx),
		Path:      r.URL.Path,
		Success:   success,
		Error:     reason,
	})
}

package serverAuth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	auditEventSignIn         = "signin"
	auditEventSignUp         = "signup"
	auditEventSignOut        = "signout"
	auditEventSessionInvalid = "session_invalid"
)

// AuditEvent records the outcome of one dispatched action or rejected session.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Path      string            `json:"path,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink exposes events on a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// RedisStreamSink appends events to a Redis stream with XADD. Each entry carries
// the event type and the JSON encoded event.
type RedisStreamSink struct {
	client  redis.Cmdable
	stream  string
	maxLen  int64
	onError func(error)
}

// RedisStreamOption configures a RedisStreamSink.
type RedisStreamOption func(*RedisStreamSink)

// WithStreamMaxLen trims the stream to n entries on every write. Zero keeps everything.
func WithStreamMaxLen(n int64) RedisStreamOption {
	return func(s *RedisStreamSink) {
		s.maxLen = n
	}
}

// WithStreamErrorHandler is called when an XADD fails. Events are never retried.
func WithStreamErrorHandler(fn func(error)) RedisStreamOption {
	return func(s *RedisStreamSink) {
		s.onError = fn
	}
}

func NewRedisStreamSink(client redis.Cmdable, stream string, opts ...RedisStreamOption) *RedisStreamSink {
	if stream == "" {
		stream = "serverauth:audit"
	}
	s := &RedisStreamSink{client: client, stream: stream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStreamSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.client == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.fail(err)
		return
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]any{
			"type":  event.EventType,
			"event": string(data),
		},
	}).Err()
	if err != nil {
		s.fail(err)
	}
}

func (s *RedisStreamSink) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

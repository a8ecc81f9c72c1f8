package serverAuth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditKinds indexes the per event type drop counters; unknown types share the
// last slot.
var auditKinds = [...]string{
	auditEventSignIn,
	auditEventSignUp,
	auditEventSignOut,
	auditEventSessionInvalid,
	"other",
}

func auditKind(eventType string) int {
	for i, kind := range auditKinds[:len(auditKinds)-1] {
		if kind == eventType {
			return i
		}
	}
	return len(auditKinds) - 1
}

// auditDispatcher hands events to the sink from a single worker goroutine so
// that sign-in latency never includes sink I/O.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	dropIfFull bool
	now        func() time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	dropped [len(auditKinds)]atomic.Uint64
}

// newAuditDispatcher returns nil when audit is disabled; every method accepts a
// nil receiver.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, now func() time.Time) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		dropIfFull: cfg.DropIfFull,
		now:        now,
		stop:       make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	ctx := context.Background()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(ctx, event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(ctx, event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event. With DropIfFull a full queue drops it at once; otherwise
// Emit waits for room and counts the event as dropped if ctx ends first. Events
// emitted after Close are discarded without being counted.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.drop(event.EventType)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-d.stop:
	case <-ctx.Done():
		d.drop(event.EventType)
	}
}

func (d *auditDispatcher) drop(eventType string) {
	d.dropped[auditKind(eventType)].Add(1)
}

// Close stops accepting events and blocks until the queue is flushed to the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for i := range d.dropped {
		total += d.dropped[i].Load()
	}
	return total
}

// DroppedByType reports drops per event type, omitting types without drops.
func (d *auditDispatcher) DroppedByType() map[string]uint64 {
	out := make(map[string]uint64)
	if d == nil {
		return out
	}
	for i, kind := range auditKinds {
		if n := d.dropped[i].Load(); n > 0 {
			out[kind] = n
		}
	}
	return out
}

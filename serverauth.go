package serverAuth

import (
	"sync"
	"time"

	"github.com/MrEthical07/serverAuth/token"
	"github.com/sirupsen/logrus"
)

// ServerAuth issues and verifies session cookies and dispatches auth actions.
//
// ServerAuth instances are immutable after Build and safe for concurrent use.
type ServerAuth struct {
	cfg     Config
	codec   *token.Codec
	paths   PathTable
	signUp  ActionHandler
	signOut ActionHandler
	audit   *auditDispatcher
	metrics *Metrics
	logger  logrus.FieldLogger
	now     func() time.Time

	closeOnce sync.Once
}

// NewServerAuth builds a ServerAuth from cfg with default handlers and logger.
func NewServerAuth(cfg Config) (*ServerAuth, error) {
	return New().WithConfig(cfg).Build()
}

// Close flushes pending audit events. It is safe to call more than once.
// Dropped audit events are reported once, at warn level.
func (a *ServerAuth) Close() {
	if a == nil || a.audit == nil {
		return
	}
	a.closeOnce.Do(func() {
		a.audit.Close()

		byType := a.audit.DroppedByType()
		if len(byType) == 0 {
			return
		}
		fields := make(logrus.Fields, len(byType))
		for kind, n := range byType {
			fields["dropped_"+kind] = n
		}
		a.logger.WithFields(fields).Warn("audit events dropped")
	})
}

// Config returns a copy of the effective configuration.
func (a *ServerAuth) Config() Config {
	return cloneConfig(a.cfg)
}

// AuditDropped returns the number of audit events lost to a full buffer or a
// cancelled request context.
func (a *ServerAuth) AuditDropped() uint64 {
	if a == nil || a.audit == nil {
		return 0
	}
	return a.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (a *ServerAuth) AuditDroppedByType() map[string]uint64 {
	if a == nil {
		return map[string]uint64{}
	}
	return a.audit.DroppedByType()
}

func (a *ServerAuth) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return a.metrics.Snapshot()
}

package serverAuth

import (
	"time"

	"github.com/MrEthical07/serverAuth/token"
	"github.com/sirupsen/logrus"
)

// Builder assembles a ServerAuth.
//
// Builder instances are intended to be configured during initialization and used for a single Build.
type Builder struct {
	config Config

	signUp    ActionHandler
	signOut   ActionHandler
	auditSink AuditSink
	logger    logrus.FieldLogger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero-valued optional fields are
// filled with defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSignUpHandler fills the sign-up slot. A nil handler keeps the default.
func (b *Builder) WithSignUpHandler(h ActionHandler) *Builder {
	b.signUp = h
	return b
}

// WithSignOutHandler fills the sign-out slot. A nil handler keeps the default.
func (b *Builder) WithSignOutHandler(h ActionHandler) *Builder {
	b.signOut = h
	return b
}

// WithAuditSink sets the sink behind the audit dispatcher. It has no effect
// unless Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for token timestamps and audit events.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the ServerAuth. A Builder can be
// built once; later calls return ErrBuilderUsed.
func (b *Builder) Build() (*ServerAuth, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := token.NewCodec(token.Config{
		Secret: []byte(cfg.Secret),
		Now:    now,
	})
	if err != nil {
		return nil, configError(err.Error())
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	auth := &ServerAuth{
		cfg:     cfg,
		codec:   codec,
		paths:   cfg.Paths,
		signUp:  b.signUp,
		signOut: b.signOut,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}
	if auth.signUp == nil {
		auth.signUp = NotImplementedHandler(ActionSignUp)
	}
	if auth.signOut == nil {
		auth.signOut = NotImplementedHandler(ActionSignOut)
	}
	auth.audit = newAuditDispatcher(cfg.Audit, b.auditSink, now)

	b.built = true

	return auth, nil
}

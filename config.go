package serverAuth

import (
	"fmt"
	"net/http"
	"strings"
)

// Config is the single long-lived configuration object of a ServerAuth.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// Secret is the symmetric key material used to sign and verify sessions.
	Secret string
	// Actions holds the optional sign-in hooks.
	Actions Actions
	// Paths replaces the default path table wholesale when non-nil.
	Paths PathTable

	Cookie       CookieConfig
	MaxBodyBytes int64
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the session cookie attributes. The cookie is always HttpOnly.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	// DefaultCookieName is the cookie a session token is stored under.
	DefaultCookieName = "session"
	// DefaultMaxBodyBytes caps form-encoded sign-in bodies.
	DefaultMaxBodyBytes int64 = 1 << 20
)

func defaultConfig() Config {
	return Config{
		Paths: DefaultPaths(),
		Cookie: CookieConfig{
			Name:     DefaultCookieName,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		MaxBodyBytes: DefaultMaxBodyBytes,
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the baseline configuration. Secret is left empty and must be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Paths != nil {
		out.Paths = make(PathTable, len(cfg.Paths))
		for path, action := range cfg.Paths {
			out.Paths[path] = action
		}
	}
	return out
}

// normalize fills zero-valued optional fields with defaults. A non-nil Paths is
// kept as is, even when empty.
func (c *Config) normalize() {
	def := defaultConfig()
	if c.Paths == nil {
		c.Paths = def.Paths
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = def.Cookie.Name
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = def.Cookie.Path
	}
	if c.Cookie.SameSite == 0 {
		c.Cookie.SameSite = def.Cookie.SameSite
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem, wrapped in ErrConfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return configError("Secret is required")
	}

	for path, action := range c.Paths {
		if !strings.HasPrefix(path, "/") {
			return configError(fmt.Sprintf("path %q must start with '/'", path))
		}
		if !action.valid() {
			return configError(fmt.Sprintf("path %q maps to unknown action %d", path, int(action)))
		}
	}

	if c.Cookie.Name == "" {
		return configError("Cookie Name is required")
	}
	if strings.ContainsAny(c.Cookie.Name, " \t\r\n;,=\"") {
		return configError("Cookie Name contains invalid characters")
	}
	switch c.Cookie.SameSite {
	case 0, http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode:
	case http.SameSiteNoneMode:
		if !c.Cookie.Secure {
			return configError("Cookie SameSite=None requires Secure")
		}
	default:
		return configError("Cookie SameSite is invalid")
	}

	if c.MaxBodyBytes < 0 {
		return configError("MaxBodyBytes must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

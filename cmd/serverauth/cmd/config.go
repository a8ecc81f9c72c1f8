package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	serverAuth "github.com/MrEthical07/serverAuth"
	"gopkg.in/yaml.v3"
)

// SecretEnv overrides the secret from the config file.
const SecretEnv = "SERVERAUTH_SECRET"

type fileConfig struct {
	Addr         string            `yaml:"addr"`
	Secret       string            `yaml:"secret"`
	Paths        map[string]string `yaml:"paths"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
	Cookie       cookieFileConfig  `yaml:"cookie"`
	Audit        auditFileConfig   `yaml:"audit"`
	Metrics      metricsFileConfig `yaml:"metrics"`
	Log          logFileConfig     `yaml:"log"`
}

type cookieFileConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"same_site"`
}

type auditFileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BufferSize int    `yaml:"buffer_size"`
	DropIfFull *bool  `yaml:"drop_if_full"`
	RedisAddr  string `yaml:"redis_addr"`
	Stream     string `yaml:"stream"`
	MaxLen     int64  `yaml:"max_len"`
}

type metricsFileConfig struct {
	Enabled           *bool `yaml:"enabled"`
	LatencyHistograms bool  `yaml:"latency_histograms"`
}

type logFileConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Addr: ":8080",
		Log:  logFileConfig{Level: "info", Format: "text"},
	}
}

// loadFileConfig reads path (when set) over the defaults and applies the
// environment override for the secret.
func loadFileConfig(path string) (fileConfig, error) {
	fc := defaultFileConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fileConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if secret := os.Getenv(SecretEnv); secret != "" {
		fc.Secret = secret
	}
	return fc, nil
}

func (fc fileConfig) serverAuthConfig() (serverAuth.Config, error) {
	cfg := serverAuth.DefaultConfig()
	cfg.Secret = fc.Secret
	if fc.MaxBodyBytes != 0 {
		cfg.MaxBodyBytes = fc.MaxBodyBytes
	}

	if len(fc.Paths) > 0 {
		cfg.Paths = make(serverAuth.PathTable, len(fc.Paths))
		for path, name := range fc.Paths {
			action, err := parseAction(name)
			if err != nil {
				return serverAuth.Config{}, fmt.Errorf("paths[%q]: %w", path, err)
			}
			cfg.Paths[path] = action
		}
	}

	if fc.Cookie.Name != "" {
		cfg.Cookie.Name = fc.Cookie.Name
	}
	if fc.Cookie.Path != "" {
		cfg.Cookie.Path = fc.Cookie.Path
	}
	cfg.Cookie.Domain = fc.Cookie.Domain
	cfg.Cookie.Secure = fc.Cookie.Secure
	if fc.Cookie.SameSite != "" {
		sameSite, err := parseSameSite(fc.Cookie.SameSite)
		if err != nil {
			return serverAuth.Config{}, err
		}
		cfg.Cookie.SameSite = sameSite
	}

	cfg.Audit.Enabled = fc.Audit.Enabled
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}

	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	cfg.Metrics.EnableLatencyHistograms = fc.Metrics.LatencyHistograms

	return cfg, cfg.Validate()
}

func parseAction(name string) (serverAuth.Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "signin":
		return serverAuth.ActionSignIn, nil
	case "signup":
		return serverAuth.ActionSignUp, nil
	case "signout":
		return serverAuth.ActionSignOut, nil
	default:
		return 0, fmt.Errorf("unknown action %q", name)
	}
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "default":
		return http.SameSiteDefaultMode, nil
	default:
		return 0, fmt.Errorf("unknown same_site %q", v)
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/MrEthical07/serverAuth/metrics/export/prometheus"
	"github.com/MrEthical07/serverAuth/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	redisEmbedded bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP host that serves the auth endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		fc, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			fc.Addr = serveAddr
		}

		logger, err := newLogger(fc)
		if err != nil {
			return err
		}

		cfg, err := fc.serverAuthConfig()
		if err != nil {
			return err
		}

		sink, closeSink, err := newAuditSink(fc.Audit, logger)
		if err != nil {
			return err
		}
		defer closeSink()

		auth, err := serverAuth.New().
			WithConfig(cfg).
			WithSignOutHandler(serverAuth.ClearSessionHandler).
			WithAuditSink(sink).
			WithLogger(logger).
			Build()
		if err != nil {
			return err
		}
		defer auth.Close()

		server := &http.Server{
			Addr:              fc.Addr,
			Handler:           newRouter(auth, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.WithField("addr", fc.Addr).Info("serverauth listening")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.WithField("signal", sig.String()).Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-done
		case err := <-done:
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides the config file)")
	serveCmd.Flags().BoolVar(&redisEmbedded, "redis-embedded", false, "write audit events to an embedded miniredis stream")
	rootCmd.AddCommand(serveCmd)
}

// newRouter mounts the dispatcher under /auth and a session probe on /session.
func newRouter(auth *serverAuth.ServerAuth, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(propagateRequestID)
	r.Use(middleware.LoadSession(auth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	if auth.Config().Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", prometheus.NewCollector(auth).Handler())
	}

	r.Handle("/auth/*", auth.Handler(nil))

	stack := middleware.New(middleware.RequestURL).WithLogger(logger)
	r.Method(http.MethodGet, "/session", stack.Handler(http.HandlerFunc(sessionHandler)))

	return r
}

// propagateRequestID hands chi's request id to serverAuth so logs and audit
// events share it.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			r = r.WithContext(serverAuth.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func sessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": true, "session": session})
}

// newAuditSink picks the audit destination: a Redis stream when an address is
// configured or --redis-embedded is set, JSON lines on stdout otherwise.
func newAuditSink(cfg auditFileConfig, logger logrus.FieldLogger) (serverAuth.AuditSink, func(), error) {
	if !cfg.Enabled {
		return serverAuth.NoOpSink{}, func() {}, nil
	}

	addr := cfg.RedisAddr
	var embedded *miniredis.Miniredis
	if redisEmbedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		embedded = mr
		addr = mr.Addr()
	}

	if addr == "" {
		return serverAuth.NewJSONWriterSink(os.Stdout), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	sink := serverAuth.NewRedisStreamSink(client, cfg.Stream,
		serverAuth.WithStreamMaxLen(cfg.MaxLen),
		serverAuth.WithStreamErrorHandler(func(err error) {
			logger.WithError(err).Warn("audit event not written to redis")
		}),
	)
	logger.WithField("redis_addr", addr).Info("audit events go to redis stream")

	return sink, func() {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
	}, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of session tokens to pre-sign")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (signin + session)")
		redisAddr   = flag.String("redis-addr", "", "redis address for audit events; if empty, REDIS_ADDR env or miniredis is used")
		stream      = flag.String("stream", "serverauth:loadtest", "audit stream name")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	cfg := serverAuth.DefaultConfig()
	cfg.Secret = "loadtest-secret"
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 4096
	cfg.Metrics.EnableLatencyHistograms = true

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	auth, err := serverAuth.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(serverAuth.NewRedisStreamSink(client, *stream)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	cookies := make([]*http.Cookie, *sessions)
	fmt.Printf("signing %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range cookies {
		signed, err := auth.Sign(serverAuth.Payload{"id": fmt.Sprintf("user-%d", i), "role": "member"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
			os.Exit(1)
		}
		cookies[i] = auth.SessionCookie(signed)
	}
	fmt.Printf("signed in %s\n", time.Since(startSeed).Round(time.Millisecond))

	signInStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		form := url.Values{"user": {fmt.Sprintf("user-%d", r.Intn(*sessions))}}
		req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		res, err := auth.Handle(req)
		return err == nil && res.Status == serverAuth.StatusHandled
	})
	sessionStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[r.Intn(len(cookies))])
		_, ok := auth.Session(req)
		return ok
	})

	auth.Close()

	streamLen, _ := client.XLen(context.Background(), *stream).Result()

	fmt.Println("---- results ----")
	printStats("signin", signInStats)
	printStats("session", sessionStats)
	fmt.Printf("audit: stream=%d dropped=%d\n", streamLen, auth.AuditDropped())
	byType := auth.AuditDroppedByType()
	kinds := make([]string, 0, len(byType))
	for kind := range byType {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  dropped %-16s %d\n", kind, byType[kind])
	}
}

// runPhase spreads ops calls of op over concurrency workers and records latency.
func runPhase(ops, concurrency int, op func(r *rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

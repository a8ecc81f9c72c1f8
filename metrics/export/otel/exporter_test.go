package otel

import (
	"context"
	"sync"
	"testing"

	serverAuth "github.com/MrEthical07/serverAuth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot serverAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() serverAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := serverAuth.MetricsSnapshot{
		Counters:   make(map[serverAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[serverAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("serverauth-test")

	src := &fakeSource{
		snapshot: serverAuth.MetricsSnapshot{
			Counters: map[serverAuth.MetricID]uint64{
				serverAuth.MetricSignInSuccess: 3,
			},
			Histograms: map[serverAuth.MetricID][]uint64{
				serverAuth.MetricSignLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	m, ok := findMetric(rm, "serverauth_signin_success_total")
	if !ok {
		t.Fatal("expected serverauth_signin_success_total to be collected")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected signin counter data: %#v", m.Data)
	}

	m, ok = findMetric(rm, "serverauth_sign_latency_seconds_bucket")
	if !ok {
		t.Fatal("expected latency bucket gauge to be collected")
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %#v", m.Data)
	}
	var inf int64
	for _, dp := range gauge.DataPoints {
		if v, ok := dp.Attributes.Value("le"); ok && v.AsString() == "+Inf" {
			inf = dp.Value
		}
	}
	if inf != 8 {
		t.Fatalf("expected +Inf cumulative bucket 8, got %d", inf)
	}

	if _, ok := findMetric(rm, "serverauth_audit_dropped_total"); !ok {
		t.Fatal("expected audit dropped counter to be collected")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("serverauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil ServerAuth, got %v", err)
	}
}

func TestExporterReadsLiveServerAuth(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("serverauth-test")

	auth, err := serverAuth.New().WithConfig(serverAuth.Config{Secret: "otel-secret"}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer auth.Close()

	exp, err := NewExporter(meter, auth)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := findMetric(rm, "serverauth_session_valid_total"); !ok {
		t.Fatal("expected session counter from live ServerAuth")
	}
	if _, ok := findMetric(rm, "serverauth_sign_latency_seconds_bucket"); ok {
		t.Fatal("latency buckets must not be published when histograms are disabled")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("serverauth-test")

	src := &fakeSource{
		snapshot: serverAuth.MetricsSnapshot{
			Counters: map[serverAuth.MetricID]uint64{
				serverAuth.MetricSignInSuccess: 1,
			},
			Histograms: map[serverAuth.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[serverAuth.MetricSignInSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

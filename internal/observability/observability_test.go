package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sandeepkv93/refresh-session-auth/internal/config"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordersCountIntoInstalledMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newAppMetrics(mp.Meter(instrumentationName))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	metricsMu.Lock()
	prev := appMetrics
	appMetrics = m
	metricsMu.Unlock()
	t.Cleanup(func() {
		metricsMu.Lock()
		appMetrics = prev
		metricsMu.Unlock()
	})

	ctx := context.Background()
	RecordAuthRefresh(ctx, "success")
	RecordAuthRefresh(ctx, "unauthorized")
	RecordRepositoryOperation(ctx, "session", "rotate", "success")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[metric.Name] += dp.Value
			}
		}
	}
	if totals["auth.refresh.attempts"] != 2 {
		t.Fatalf("expected 2 refresh attempts, got %d", totals["auth.refresh.attempts"])
	}
	if totals["repository.operations"] != 1 {
		t.Fatalf("expected 1 repository operation, got %d", totals["repository.operations"])
	}
}

func TestRecordersAreNoopsWithoutMetrics(t *testing.T) {
	metricsMu.Lock()
	prev := appMetrics
	appMetrics = nil
	metricsMu.Unlock()
	t.Cleanup(func() {
		metricsMu.Lock()
		appMetrics = prev
		metricsMu.Unlock()
	})
	RecordAuthLogin(context.Background(), "success")
	RecordRotationLock(context.Background(), "memory", "acquired")
}

func TestNewLoggerWritesJSONWhenOTelLogsDisabled(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{OTELServiceName: "svc", LogLevel: "warn"}
	logger, lp, err := NewLogger(context.Background(), cfg, &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if lp != nil {
		t.Fatal("expected no logger provider when otel logs are disabled")
	}
	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "kept" || rec["service"] != "svc" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

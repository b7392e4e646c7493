// Package telemetry sets up OpenTelemetry metrics with a Prometheus
// exporter and defines the engine's instrument set: buffer pool
// hits/misses/evictions, lock waits, deadlock victims and transaction
// outcomes. Core packages receive these through small sink interfaces
// so they never import the SDK themselves.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config toggles the telemetry system.
type Config struct {
	// Enabled toggles metrics collection and the /metrics endpoint.
	Enabled bool `yaml:"enabled"`
	// ServiceName labels the exported metrics.
	ServiceName string `yaml:"service_name"`
	// PrometheusPort is the port serving /metrics.
	PrometheusPort int `yaml:"prometheus_port"`
}

// ShutdownFunc tears down the meter provider.
type ShutdownFunc func(ctx context.Context) error

// EngineMetrics holds the engine's counters. It satisfies the metric
// sink interfaces of the buffer and concurrency packages.
type EngineMetrics struct {
	poolHits      metric.Int64Counter
	poolMisses    metric.Int64Counter
	poolEvictions metric.Int64Counter
	lockWaits     metric.Int64Counter
	deadlocks     metric.Int64Counter
	txnCommits    metric.Int64Counter
	txnAborts     metric.Int64Counter
}

// New initializes the meter provider, exposes /metrics and builds the
// engine instrument set. With Enabled false everything is a no-op.
func New(config Config) (*EngineMetrics, ShutdownFunc, error) {
	if !config.Enabled {
		m, err := newEngineMetrics(noop.NewMeterProvider().Meter("sukunadb"))
		return m, func(context.Context) error { return nil }, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(config.ServiceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	go func() {
		addr := fmt.Sprintf(":%d", config.PrometheusPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			otel.Handle(fmt.Errorf("prometheus http server failed: %w", err))
		}
	}()

	m, err := newEngineMetrics(provider.Meter(config.ServiceName))
	if err != nil {
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

func newEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	var err error
	if m.poolHits, err = meter.Int64Counter("sukunadb.buffer.hits",
		metric.WithDescription("buffer pool page table hits")); err != nil {
		return nil, err
	}
	if m.poolMisses, err = meter.Int64Counter("sukunadb.buffer.misses",
		metric.WithDescription("buffer pool fetches that went to disk")); err != nil {
		return nil, err
	}
	if m.poolEvictions, err = meter.Int64Counter("sukunadb.buffer.evictions",
		metric.WithDescription("frames reclaimed by the replacer")); err != nil {
		return nil, err
	}
	if m.lockWaits, err = meter.Int64Counter("sukunadb.lock.waits",
		metric.WithDescription("lock requests that blocked")); err != nil {
		return nil, err
	}
	if m.deadlocks, err = meter.Int64Counter("sukunadb.lock.deadlock_victims",
		metric.WithDescription("transactions aborted by the deadlock detector")); err != nil {
		return nil, err
	}
	if m.txnCommits, err = meter.Int64Counter("sukunadb.txn.commits",
		metric.WithDescription("committed transactions")); err != nil {
		return nil, err
	}
	if m.txnAborts, err = meter.Int64Counter("sukunadb.txn.aborts",
		metric.WithDescription("aborted transactions")); err != nil {
		return nil, err
	}
	return m, nil
}

// PoolHit implements the buffer pool metric sink.
func (m *EngineMetrics) PoolHit() { m.poolHits.Add(context.Background(), 1) }

// PoolMiss implements the buffer pool metric sink.
func (m *EngineMetrics) PoolMiss() { m.poolMisses.Add(context.Background(), 1) }

// PoolEviction implements the buffer pool metric sink.
func (m *EngineMetrics) PoolEviction() { m.poolEvictions.Add(context.Background(), 1) }

// LockWait implements the lock manager metric sink.
func (m *EngineMetrics) LockWait() { m.lockWaits.Add(context.Background(), 1) }

// DeadlockVictim implements the lock manager metric sink.
func (m *EngineMetrics) DeadlockVictim() { m.deadlocks.Add(context.Background(), 1) }

// TxnCommitted implements the transaction manager metric sink.
func (m *EngineMetrics) TxnCommitted() { m.txnCommits.Add(context.Background(), 1) }

// TxnAborted implements the transaction manager metric sink.
func (m *EngineMetrics) TxnAborted() { m.txnAborts.Add(context.Background(), 1) }

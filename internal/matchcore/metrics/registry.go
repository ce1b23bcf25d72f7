// Package metrics implements the MetricsRegistry: counters, histograms and
// gauges for match requests, queue jobs and external calls, recorded off the
// hot path through a buffered event channel and exported via OpenTelemetry's
// Prometheus exporter.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/benidevo/matchcore/internal/common/logger"
)

type eventType int

const (
	eventMatchRequest eventType = iota
	eventQueueJob
	eventExternalCall
	eventQueueWait
	eventCircuitState
	eventQueueDepth
)

type metricEvent struct {
	eventType eventType
	ctx       context.Context
	attrs     []attribute.KeyValue

	value    float64
	duration time.Duration

	// snapshot bookkeeping
	snapshotKey string
}

// Registry owns every instrument the core records into.
type Registry struct {
	meter          metric.Meter
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	log            zerolog.Logger

	matchRequests   metric.Int64Counter
	queueJobs       metric.Int64Counter
	externalCalls   metric.Int64Counter
	matchLatency    metric.Float64Histogram
	queueWait       metric.Float64Histogram
	externalLatency metric.Float64Histogram
	circuitState    metric.Float64Gauge
	queueDepth      metric.Float64Gauge

	eventChan   chan metricEvent
	workerCount int
	wg          sync.WaitGroup
	shutdownCh  chan struct{}

	// snapshot mirrors every recorded value so the read-only Snapshot()
	// contract works without scraping the exporter.
	snapMu   sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
}

// NewRegistry builds the Registry and starts its recording workers.
func NewRegistry(serviceName, version string) (*Registry, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// A per-registry Prometheus registerer keeps instances independent
	// (tests build several registries in one process).
	promRegistry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(promRegistry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(provider)

	r := &Registry{
		meter:          provider.Meter(serviceName),
		meterProvider:  provider,
		metricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		log:            logger.GetLogger("matchcore.metrics"),
		eventChan:      make(chan metricEvent, 10000),
		workerCount:    2,
		shutdownCh:     make(chan struct{}),
		counters:       make(map[string]int64),
		gauges:         make(map[string]float64),
	}

	if err := r.createMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	r.startWorkers()

	return r, nil
}

func (r *Registry) createMetrics() error {
	var err error

	r.matchRequests, err = r.meter.Int64Counter(
		"match_requests_total",
		metric.WithDescription("Total match requests by algorithm and result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	r.queueJobs, err = r.meter.Int64Counter(
		"queue_jobs_total",
		metric.WithDescription("Queue jobs reaching a terminal status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	r.externalCalls, err = r.meter.Int64Counter(
		"external_calls_total",
		metric.WithDescription("Outbound dependency calls by result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.matchLatency, err = r.meter.Float64Histogram(
		"match_latency_seconds",
		metric.WithDescription("Match scoring latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return err
	}

	r.queueWait, err = r.meter.Float64Histogram(
		"queue_wait_seconds",
		metric.WithDescription("Time jobs spend queued before a worker picks them up"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 15, 60, 300, 1800),
	)
	if err != nil {
		return err
	}

	r.externalLatency, err = r.meter.Float64Histogram(
		"external_latency_seconds",
		metric.WithDescription("Outbound dependency latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	r.circuitState, err = r.meter.Float64Gauge(
		"circuit_state",
		metric.WithDescription("Circuit breaker state per dependency (0 closed, 1 halfOpen, 2 open)"),
	)
	if err != nil {
		return err
	}

	r.queueDepth, err = r.meter.Float64Gauge(
		"queue_depth",
		metric.WithDescription("Pending jobs per priority"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ServeHTTP serves the Prometheus scrape endpoint; the transport layer
// decides where to mount it.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.metricsHandler.ServeHTTP(w, req)
}

func (r *Registry) startWorkers() {
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

func (r *Registry) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.eventChan:
			r.processEvent(event)
		case <-r.shutdownCh:
			return
		}
	}
}

func (r *Registry) processEvent(event metricEvent) {
	ctx := event.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	switch event.eventType {
	case eventMatchRequest:
		r.matchRequests.Add(ctx, 1, metric.WithAttributes(event.attrs...))
		r.matchLatency.Record(ctx, event.duration.Seconds(), metric.WithAttributes(event.attrs...))
		r.bumpCounter(event.snapshotKey)
	case eventQueueJob:
		r.queueJobs.Add(ctx, 1, metric.WithAttributes(event.attrs...))
		r.bumpCounter(event.snapshotKey)
	case eventExternalCall:
		r.externalCalls.Add(ctx, 1, metric.WithAttributes(event.attrs...))
		r.externalLatency.Record(ctx, event.duration.Seconds(), metric.WithAttributes(event.attrs...))
		r.bumpCounter(event.snapshotKey)
	case eventQueueWait:
		r.queueWait.Record(ctx, event.duration.Seconds(), metric.WithAttributes(event.attrs...))
	case eventCircuitState:
		r.circuitState.Record(ctx, event.value, metric.WithAttributes(event.attrs...))
		r.setGauge(event.snapshotKey, event.value)
	case eventQueueDepth:
		r.queueDepth.Record(ctx, event.value, metric.WithAttributes(event.attrs...))
		r.setGauge(event.snapshotKey, event.value)
	}
}

func (r *Registry) bumpCounter(key string) {
	if key == "" {
		return
	}
	r.snapMu.Lock()
	r.counters[key]++
	r.snapMu.Unlock()
}

func (r *Registry) setGauge(key string, value float64) {
	if key == "" {
		return
	}
	r.snapMu.Lock()
	r.gauges[key] = value
	r.snapMu.Unlock()
}

// send enqueues an event without blocking the request path; a full channel
// drops the event.
func (r *Registry) send(event metricEvent) {
	if r == nil {
		return
	}
	select {
	case r.eventChan <- event:
	default:
		r.log.Debug().Msg("metric channel full, event dropped")
	}
}

// RecordMatchRequest counts one match by algorithm and result ("ok",
// "fallback", "error") and records its latency.
func (r *Registry) RecordMatchRequest(ctx context.Context, algorithm, result string, latency time.Duration) {
	r.send(metricEvent{
		eventType:   eventMatchRequest,
		ctx:         ctx,
		duration:    latency,
		snapshotKey: "match_requests_total{algorithm=" + algorithm + ",result=" + result + "}",
		attrs: []attribute.KeyValue{
			attribute.String("algorithm", algorithm),
			attribute.String("result", result),
		},
	})
}

// RecordQueueJob counts one job reaching a terminal status.
func (r *Registry) RecordQueueJob(ctx context.Context, priority, terminalStatus string) {
	r.send(metricEvent{
		eventType:   eventQueueJob,
		ctx:         ctx,
		snapshotKey: "queue_jobs_total{priority=" + priority + ",terminal_status=" + terminalStatus + "}",
		attrs: []attribute.KeyValue{
			attribute.String("priority", priority),
			attribute.String("terminal_status", terminalStatus),
		},
	})
}

// RecordExternalCall counts one dependency call and its latency.
func (r *Registry) RecordExternalCall(ctx context.Context, dep, result string, latency time.Duration) {
	r.send(metricEvent{
		eventType:   eventExternalCall,
		ctx:         ctx,
		duration:    latency,
		snapshotKey: "external_calls_total{dep=" + dep + ",result=" + result + "}",
		attrs: []attribute.KeyValue{
			attribute.String("dep", dep),
			attribute.String("result", result),
		},
	})
}

// RecordQueueWait records how long a job waited before being dequeued.
func (r *Registry) RecordQueueWait(ctx context.Context, priority string, wait time.Duration) {
	r.send(metricEvent{
		eventType: eventQueueWait,
		ctx:       ctx,
		duration:  wait,
		attrs:     []attribute.KeyValue{attribute.String("priority", priority)},
	})
}

// RecordCircuitState publishes a breaker's state (0 closed, 1 halfOpen,
// 2 open).
func (r *Registry) RecordCircuitState(ctx context.Context, dep string, state float64) {
	r.send(metricEvent{
		eventType:   eventCircuitState,
		ctx:         ctx,
		value:       state,
		snapshotKey: "circuit_state{dep=" + dep + "}",
		attrs:       []attribute.KeyValue{attribute.String("dep", dep)},
	})
}

// RecordQueueDepth publishes a priority's pending count.
func (r *Registry) RecordQueueDepth(ctx context.Context, priority string, depth float64) {
	r.send(metricEvent{
		eventType:   eventQueueDepth,
		ctx:         ctx,
		value:       depth,
		snapshotKey: "queue_depth{priority=" + priority + "}",
		attrs:       []attribute.KeyValue{attribute.String("priority", priority)},
	})
}

// Snapshot returns a read-only copy of every counter and last gauge value.
// The transport layer chooses how to serialize it.
func (r *Registry) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	r.snapMu.Lock()
	defer r.snapMu.Unlock()

	out := make(map[string]any, len(r.counters)+len(r.gauges))
	for k, v := range r.counters {
		out[k] = v
	}
	for k, v := range r.gauges {
		out[k] = v
	}
	return out
}

// Flush blocks until queued events drain; tests call it before asserting on
// Snapshot.
func (r *Registry) Flush() {
	for {
		if len(r.eventChan) == 0 {
			// One more scheduling round lets in-flight processEvent calls land.
			time.Sleep(time.Millisecond)
			if len(r.eventChan) == 0 {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
}

// Shutdown drains the workers and the meter provider.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}

	close(r.shutdownCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("metrics shutdown timeout, some events may be lost")
	}

	if r.meterProvider != nil {
		return r.meterProvider.Shutdown(ctx)
	}
	return nil
}

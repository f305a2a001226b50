package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	SearchQueries       metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	IndexWrites         metric.Int64Counter
	DocumentDeletes     metric.Int64Counter
	EmbeddingCalls      metric.Int64Counter
	EmbeddingFailures   metric.Int64Counter
	EmbeddingMismatches metric.Int64Counter
	EmbeddingCacheHits  metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns process-wide metrics bound to the global meter provider.
// Instruments from a no-op provider are used if creation fails.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := InitMetrics()
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(TracerName)

	searchQueries, err := meter.Int64Counter(
		"search.queries.total",
		metric.WithDescription("Total search queries by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.query.duration",
		metric.WithDescription("Search query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	indexWrites, err := meter.Int64Counter(
		"search.index.writes",
		metric.WithDescription("Documents written to the search index"),
	)
	if err != nil {
		return nil, err
	}

	documentDeletes, err := meter.Int64Counter(
		"search.index.deletes",
		metric.WithDescription("Documents deleted from the search index"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFailures, err := meter.Int64Counter(
		"embeddings.failures.total",
		metric.WithDescription("Embedding requests that produced no vector"),
	)
	if err != nil {
		return nil, err
	}

	embeddingMismatches, err := meter.Int64Counter(
		"embeddings.dimension_mismatch.total",
		metric.WithDescription("Vectors discarded for having the wrong dimensionality"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCacheHits, err := meter.Int64Counter(
		"embeddings.cache.hits",
		metric.WithDescription("Embedding cache hits by tier"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SearchQueries:       searchQueries,
		SearchDuration:      searchDuration,
		IndexWrites:         indexWrites,
		DocumentDeletes:     documentDeletes,
		EmbeddingCalls:      embeddingCalls,
		EmbeddingFailures:   embeddingFailures,
		EmbeddingMismatches: embeddingMismatches,
		EmbeddingCacheHits:  embeddingCacheHits,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordSearch records one query of the given operation (answer, list, ...).
func (m *Metrics) RecordSearch(operation string, success bool, duration float64) {
	if m == nil || m.SearchQueries == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("search.operation", operation),
		attribute.Bool("search.success", success),
	}

	m.SearchQueries.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIndexWrite records documents written, split by vector presence.
func (m *Metrics) RecordIndexWrite(count int, hasVector, success bool) {
	if m == nil || m.IndexWrites == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Bool("index.has_vector", hasVector),
		attribute.Bool("index.success", success),
	}

	m.IndexWrites.Add(context.Background(), int64(count), metric.WithAttributes(attrs...))
}

// RecordDeletes records documents deleted or failed to delete.
func (m *Metrics) RecordDeletes(deleted, failed int) {
	if m == nil || m.DocumentDeletes == nil {
		return
	}
	m.DocumentDeletes.Add(context.Background(), int64(deleted), metric.WithAttributes(attribute.Bool("delete.success", true)))
	if failed > 0 {
		m.DocumentDeletes.Add(context.Background(), int64(failed), metric.WithAttributes(attribute.Bool("delete.success", false)))
	}
}

// RecordEmbeddingCall records a provider call.
func (m *Metrics) RecordEmbeddingCall(provider string, success bool) {
	if m == nil || m.EmbeddingCalls == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("embeddings.provider", provider),
		attribute.Bool("embeddings.success", success),
	}
	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	if !success {
		m.EmbeddingFailures.Add(context.Background(), 1, metric.WithAttributes(attrs[0]))
	}
}

// RecordEmbeddingMismatch records a vector discarded for its length.
func (m *Metrics) RecordEmbeddingMismatch(provider string, got, want int) {
	if m == nil || m.EmbeddingMismatches == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("embeddings.provider", provider),
		attribute.Int("embeddings.got", got),
		attribute.Int("embeddings.want", want),
	}
	m.EmbeddingMismatches.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records an embedding cache hit on the given tier.
func (m *Metrics) RecordCacheHit(tier string) {
	if m == nil || m.EmbeddingCacheHits == nil {
		return
	}
	m.EmbeddingCacheHits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cache.tier", tier)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil || m.CircuitBreakerState == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"digital-twin-search/internal/config"
	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/telemetry"
)

// DefaultMaxChars is the input length cap applied before a text is sent to
// the provider.
const DefaultMaxChars = 8000

type GeneratorOptions struct {
	// Model names the provider model and namespaces cache keys.
	Model             string
	Dimensions        int
	MaxChars          int
	RequestsPerMinute int
	Timeout           time.Duration
	Cache             *EmbeddingCache
	Metrics           *telemetry.Metrics
	Logger            *slog.Logger
}

// GeneratorStats are cumulative counters since construction.
type GeneratorStats struct {
	Calls      int64
	Failures   int64
	Mismatches int64
	CacheHits  int64
}

// EmbeddingGenerator is the best-effort embedding adapter used by indexing
// and search. Generate never returns an error: any failure yields nil and the
// caller continues without a vector.
type EmbeddingGenerator struct {
	provider    EmbeddingProvider
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	cache       *EmbeddingCache
	metrics     *telemetry.Metrics
	log         *slog.Logger

	model      string
	dimensions int
	maxChars   int
	timeout    time.Duration

	calls      atomic.Int64
	failures   atomic.Int64
	mismatches atomic.Int64
	cacheHits  atomic.Int64
}

// NewEmbeddingGenerator wraps provider. A nil provider gives an unavailable
// generator whose Generate always returns nil.
func NewEmbeddingGenerator(provider EmbeddingProvider, opts GeneratorOptions) *EmbeddingGenerator {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 600
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.With("embeddings")
	}

	g := &EmbeddingGenerator{
		provider:   provider,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		model:      opts.Model,
		dimensions: opts.Dimensions,
		maxChars:   opts.MaxChars,
		timeout:    opts.Timeout,
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingsAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.log.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			g.metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	rpm := opts.RequestsPerMinute
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	g.rateLimiter = rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)

	return g
}

// NewEmbeddingGeneratorFromConfig builds the provider and cache from cfg.
// Missing credentials produce an unavailable generator, not an error.
func NewEmbeddingGeneratorFromConfig(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*EmbeddingGenerator, error) {
	log := logger.With("embeddings")

	provider, err := NewProvider(ctx, cfg)
	if errors.Is(err, ErrProviderNotConfigured) {
		log.Warn("Embeddings provider not configured; indexing and search run lexical-only",
			"provider", cfg.EmbeddingsProvider)
		provider = nil
	} else if err != nil {
		return nil, err
	}

	cache, err := NewEmbeddingCache(cfg.EmbeddingCacheSize, rdb, cfg.EmbeddingCacheTTL)
	if err != nil {
		return nil, err
	}

	model := cfg.OpenAIEmbeddingsModel
	switch cfg.EmbeddingsProvider {
	case config.ProviderAzureOpenAI:
		model = cfg.AzureOpenAIEmbeddingDeploy
	case config.ProviderGoogle:
		model = cfg.GoogleEmbeddingsModel
	}
	if provider != nil {
		checkModelDimensions(cfg, model, log)
	}

	return NewEmbeddingGenerator(provider, GeneratorOptions{
		Model:             cfg.EmbeddingsProvider + "/" + model,
		Dimensions:        cfg.VectorDimensions,
		MaxChars:          cfg.EmbeddingMaxChars,
		RequestsPerMinute: cfg.EmbeddingRPM,
		Timeout:           cfg.EmbeddingTimeout,
		Cache:             cache,
		Metrics:           telemetry.Default(),
		Logger:            log,
	}), nil
}

// Available reports whether a provider is configured.
func (g *EmbeddingGenerator) Available() bool {
	return g != nil && g.provider != nil
}

// Dimensions is the fixed vector length every returned vector has.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.dimensions
}

// Stats returns the generator counters.
func (g *EmbeddingGenerator) Stats() GeneratorStats {
	return GeneratorStats{
		Calls:      g.calls.Load(),
		Failures:   g.failures.Load(),
		Mismatches: g.mismatches.Load(),
		CacheHits:  g.cacheHits.Load(),
	}
}

// Generate returns a vector of exactly Dimensions() values for text, or nil.
// Text longer than the configured cap is truncated, never rejected.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) []float32 {
	if !g.Available() || strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "embeddings.generate")
	defer span.End()

	input := TruncateText(text, g.maxChars)
	span.SetAttributes(
		attribute.String("embeddings.provider", g.provider.Name()),
		attribute.Int("embeddings.dimensions", g.dimensions),
		attribute.Int("embeddings.input_chars", utf8.RuneCountInString(input)),
		attribute.Bool("embeddings.truncated", len(input) != len(text)),
	)

	key := CacheKey(g.model, g.dimensions, input)
	if vec, tier, ok := g.cache.Get(ctx, key); ok && len(vec) == g.dimensions {
		g.cacheHits.Add(1)
		g.metrics.RecordCacheHit(tier)
		span.SetAttributes(attribute.String("embeddings.cache", tier))
		return vec
	}

	// Rate limiter wait
	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("embeddings.rate_limited", true))
		g.fail(span, "rate limiter", err)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.calls.Add(1)
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Embed(callCtx, input, g.dimensions)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("embeddings.circuit_breaker_open", true))
		}
		g.metrics.RecordEmbeddingCall(g.provider.Name(), false)
		g.fail(span, "provider call", err)
		return nil
	}
	g.metrics.RecordEmbeddingCall(g.provider.Name(), true)

	vec, _ := result.([]float32)
	if len(vec) != g.dimensions {
		g.mismatches.Add(1)
		g.metrics.RecordEmbeddingMismatch(g.provider.Name(), len(vec), g.dimensions)
		span.SetAttributes(attribute.Int("embeddings.returned_dimensions", len(vec)))
		g.log.Warn("Embedding dimensionality mismatch, vector discarded",
			"provider", g.provider.Name(), "requested", g.dimensions, "returned", len(vec))
		return nil
	}

	if err := g.cache.Set(ctx, key, vec); err != nil {
		g.log.Debug("Embedding cache write failed", "error", err)
	}
	return vec
}

func (g *EmbeddingGenerator) fail(span trace.Span, stage string, err error) {
	g.failures.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	g.log.Warn("Embedding generation failed", "stage", stage, "provider", g.provider.Name(), "error", err)
}

// Close releases the provider client.
func (g *EmbeddingGenerator) Close() error {
	if g == nil || g.provider == nil {
		return nil
	}
	return g.provider.Close()
}

// TruncateText cuts text to at most maxChars characters (runes) without
// splitting a multi-byte character.
func TruncateText(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

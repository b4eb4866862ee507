package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	RecordsExtracted    metric.Int64Counter
	ExtractionDuration  metric.Float64Histogram
	VectorUpsertFailed  metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-extraction-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	recordsExtracted, err := meter.Int64Counter(
		"extraction.records.total",
		metric.WithDescription("Total extraction records produced"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"extraction.run.duration",
		metric.WithDescription("Extraction pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	vectorUpsertFailed, err := meter.Int64Counter(
		"vectorstore.upsert.failures",
		metric.WithDescription("Vector store upserts that were deferred to backfill"),
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
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		RecordsExtracted:    recordsExtracted,
		ExtractionDuration:  extractionDuration,
		VectorUpsertFailed:  vectorUpsertFailed,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordExtraction records records produced for one category at one level
func (m *Metrics) RecordExtraction(category, level string, count int64) {
	attrs := []attribute.KeyValue{
		attribute.String("extraction.category", category),
		attribute.String("extraction.level", level),
	}

	m.RecordsExtracted.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordExtractionRun records one full pipeline run
func (m *Metrics) RecordExtractionRun(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("run.status", status),
		attribute.String("service", "extraction_pipeline"),
	}

	m.ExtractionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordVectorUpsertFailure records a vector upsert deferred to backfill
func (m *Metrics) RecordVectorUpsertFailure(collection string) {
	attrs := []attribute.KeyValue{
		attribute.String("vectorstore.collection", collection),
	}

	m.VectorUpsertFailed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

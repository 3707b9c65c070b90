// Package observe records pipeline metrics through the OpenTelemetry
// Metrics API and exposes them for Prometheus scraping.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/sjawhar/aura-calm"

// Metrics holds every instrument. Safe for concurrent use.
type Metrics struct {
	// AnalysisDuration tracks stress-analysis latency, by outcome.
	AnalysisDuration metric.Float64Histogram

	// AnalysisResults counts analyses by outcome.
	AnalysisResults metric.Int64Counter

	Escalations metric.Int64Counter

	// EnrichmentResults counts insight and guideline calls by kind and
	// outcome.
	EnrichmentResults metric.Int64Counter

	// Notices counts user-facing notices by title.
	Notices metric.Int64Counter

	WebsocketClients metric.Int64UpDownCounter

	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds and sized for LLM round trips.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("aura_calm.analysis.duration",
		metric.WithDescription("Latency of stress analysis calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisResults, err = m.Int64Counter("aura_calm.analysis.results",
		metric.WithDescription("Stress analyses by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("aura_calm.escalations",
		metric.WithDescription("Readings above the stress threshold."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentResults, err = m.Int64Counter("aura_calm.enrichment.results",
		metric.WithDescription("Insight and guideline calls by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Notices, err = m.Int64Counter("aura_calm.notices",
		metric.WithDescription("User-facing notices by title."),
	); err != nil {
		return nil, err
	}
	if met.WebsocketClients, err = m.Int64UpDownCounter("aura_calm.websocket.clients",
		metric.WithDescription("Connected websocket clients."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("aura_calm.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route, and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) RecordAnalysis(ctx context.Context, duration time.Duration, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.AnalysisDuration.Record(ctx, duration.Seconds(), attrs)
	m.AnalysisResults.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordEscalation(ctx context.Context) {
	m.Escalations.Add(ctx, 1)
}

func (m *Metrics) RecordEnrichment(ctx context.Context, kind, outcome string) {
	m.EnrichmentResults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}

func (m *Metrics) RecordNotice(ctx context.Context, title string) {
	m.Notices.Add(ctx, 1, metric.WithAttributes(attribute.String("title", title)))
}

// ClientConnected adjusts the websocket client gauge by delta.
func (m *Metrics) ClientConnected(ctx context.Context, delta int64) {
	m.WebsocketClients.Add(ctx, delta)
}

package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	triageCounter    otelmetric.Int64Counter
	triageDuration   otelmetric.Float64Histogram
	retrievalCounter otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	triageCounter, _ := meter.Int64Counter(
		"tickets.triaged",
		otelmetric.WithDescription("Number of tickets run through the triage pipeline"),
	)

	triageDuration, _ := meter.Float64Histogram(
		"triage.duration",
		otelmetric.WithDescription("End-to-end triage duration"),
		otelmetric.WithUnit("ms"),
	)

	retrievalCounter, _ := meter.Int64Counter(
		"retrieval.searches",
		otelmetric.WithDescription("Number of retrieval requests by resolved search method"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		triageCounter:    triageCounter,
		triageDuration:   triageDuration,
		retrievalCounter: retrievalCounter,
	}
}

func (o *Observability) RecordTriage(ctx context.Context, outcome string) {
	if o.triageCounter != nil {
		o.triageCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordTriageDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.triageDuration != nil {
		o.triageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordRetrieval(ctx context.Context, method string) {
	if o.retrievalCounter != nil {
		o.retrievalCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("method", method),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds gallery metrics
type BusinessMetrics struct {
	uploads        metric.Int64Counter
	uploadBytes    metric.Int64Counter
	publishes      metric.Int64Counter
	manifestItems  metric.Int64Histogram
	fetchFailures  metric.Int64Counter
	invalidations  metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	uploads, err := meter.Int64Counter(
		"sketchstacker.uploads",
		metric.WithDescription("Total number of image uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytes, err := meter.Int64Counter(
		"sketchstacker.upload.bytes",
		metric.WithDescription("Bytes written by uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter(
		"sketchstacker.manifest.publishes",
		metric.WithDescription("Total number of manifest publications"),
		metric.WithUnit("{publishes}"),
	)
	if err != nil {
		return nil, err
	}

	manifestItems, err := meter.Int64Histogram(
		"sketchstacker.manifest.items",
		metric.WithDescription("Number of keys in a published manifest"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, err
	}

	fetchFailures, err := meter.Int64Counter(
		"sketchstacker.manifest.fetch_failures",
		metric.WithDescription("Manifest fetches that failed"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter(
		"sketchstacker.cdn.invalidations",
		metric.WithDescription("CDN invalidation requests"),
		metric.WithUnit("{invalidations}"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"sketchstacker.viewer.sessions",
		metric.WithDescription("Number of cached viewer sessions"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		uploads:        uploads,
		uploadBytes:    uploadBytes,
		publishes:      publishes,
		manifestItems:  manifestItems,
		fetchFailures:  fetchFailures,
		invalidations:  invalidations,
		activeSessions: activeSessions,
	}, nil
}

// The Record methods accept a nil receiver so callers can run without metrics.

// RecordUpload records an upload attempt
func (m *BusinessMetrics) RecordUpload(ctx context.Context, size int64, duplicate, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("duplicate", duplicate),
		attribute.Bool("success", success),
	)
	m.uploads.Add(ctx, 1, attrs)
	if success && !duplicate {
		m.uploadBytes.Add(ctx, size)
	}
}

// RecordPublish records a manifest publication
func (m *BusinessMetrics) RecordPublish(ctx context.Context, items int, success bool) {
	if m == nil {
		return
	}
	m.publishes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		m.manifestItems.Record(ctx, int64(items))
	}
}

// RecordFetchFailure records a failed manifest fetch
func (m *BusinessMetrics) RecordFetchFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordInvalidation records a CDN invalidation request
func (m *BusinessMetrics) RecordInvalidation(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.invalidations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// SessionOpened increments the live viewer session gauge
func (m *BusinessMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionClosed decrements the live viewer session gauge
func (m *BusinessMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

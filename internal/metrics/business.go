package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records use case operation counts and durations.
type BusinessMetrics interface {
	// RecordOperation counts one operation. Domains are "users" and "fieldcrypt";
	// status is "success" or "error".
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records how long one operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

// FieldMetrics records per-entity outcomes of the field migration and verification tools.
type FieldMetrics interface {
	// RecordDocuments adds n documents to the counter for entity, operation and outcome
	// (for example "migrate_fields" and "written").
	RecordDocuments(ctx context.Context, entity, operation, outcome string, n int)

	// RecordFindings adds n verification findings of category for entity.
	RecordFindings(ctx context.Context, entity, category string, n int)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewBusinessMetrics creates BusinessMetrics backed by OpenTelemetry instruments whose
// names are prefixed with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
	}, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

// RecordOperation increments the operation counter.
func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, operationAttributes(domain, operation, status))
}

// RecordDuration records the operation duration in seconds.
func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

type fieldMetrics struct {
	documentCounter metric.Int64Counter
	findingCounter  metric.Int64Counter
}

// NewFieldMetrics creates FieldMetrics backed by OpenTelemetry counters.
func NewFieldMetrics(meterProvider metric.MeterProvider, namespace string) (FieldMetrics, error) {
	meter := meterProvider.Meter(namespace)

	documentCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_field_documents_total", namespace),
		metric.WithDescription("Documents processed by the field migration and verification tools"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create field document counter: %w", err)
	}

	findingCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_field_findings_total", namespace),
		metric.WithDescription("Field verification findings by category"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create field finding counter: %w", err)
	}

	return &fieldMetrics{documentCounter: documentCounter, findingCounter: findingCounter}, nil
}

// RecordDocuments adds n to the document counter. Zero counts are skipped.
func (f *fieldMetrics) RecordDocuments(ctx context.Context, entity, operation, outcome string, n int) {
	if n <= 0 {
		return
	}
	f.documentCounter.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordFindings adds n to the finding counter. Zero counts are skipped.
func (f *fieldMetrics) RecordFindings(ctx context.Context, entity, category string, n int) {
	if n <= 0 {
		return
	}
	f.findingCounter.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("category", category),
	))
}

// NoOpBusinessMetrics discards everything. It implements both BusinessMetrics and
// FieldMetrics and is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

// NewNoOpFieldMetrics creates a no-op FieldMetrics implementation.
func NewNoOpFieldMetrics() FieldMetrics {
	return &NoOpBusinessMetrics{}
}

// RecordOperation does nothing.
func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
}

// RecordDuration does nothing.
func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

// RecordDocuments does nothing.
func (n *NoOpBusinessMetrics) RecordDocuments(ctx context.Context, entity, operation, outcome string, count int) {
}

// RecordFindings does nothing.
func (n *NoOpBusinessMetrics) RecordFindings(ctx context.Context, entity, category string, count int) {
}

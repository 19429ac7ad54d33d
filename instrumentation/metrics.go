package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments of the client
type Metrics struct {
	// Flow metrics
	AuthorizationStarted   metric.Int64Counter
	CallbackClassified     metric.Int64Counter
	CodeExchanged          metric.Int64Counter
	TokenRefreshed         metric.Int64Counter
	AuthorizationCancelled metric.Int64Counter
	PendingOperations      metric.Int64ObservableGauge

	// Transport metrics
	TokenRequestsTotal   metric.Int64Counter
	TokenRequestDuration metric.Float64Histogram

	// Storage metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	client := inst.Meter("client")
	transport := inst.Meter("transport")
	storage := inst.Meter("storage")

	var err error
	m.AuthorizationStarted, err = client.Int64Counter(
		"oauth.client.authorization.started",
		metric.WithDescription("Number of authorization flows started"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.started counter: %w", err)
	}

	m.CallbackClassified, err = client.Int64Counter(
		"oauth.client.callback.classified",
		metric.WithDescription("Number of redirect navigations classified, by outcome"),
		metric.WithUnit("{navigation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback.classified counter: %w", err)
	}

	m.CodeExchanged, err = client.Int64Counter(
		"oauth.client.code.exchanged",
		metric.WithDescription("Number of authorization code exchanges, by result"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = client.Int64Counter(
		"oauth.client.token.refreshed",
		metric.WithDescription("Number of token refreshes, by result"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.AuthorizationCancelled, err = client.Int64Counter(
		"oauth.client.authorization.cancelled",
		metric.WithDescription("Number of authorization flows cancelled by the user"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.cancelled counter: %w", err)
	}

	m.PendingOperations, err = client.Int64ObservableGauge(
		"oauth.client.operations.pending",
		metric.WithDescription("Number of in-flight exchange and refresh operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations.pending gauge: %w", err)
	}

	m.TokenRequestsTotal, err = transport.Int64Counter(
		"oauth.client.token_endpoint.requests",
		metric.WithDescription("Total number of token endpoint requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_endpoint.requests counter: %w", err)
	}

	m.TokenRequestDuration, err = transport.Float64Histogram(
		"oauth.client.token_endpoint.duration",
		metric.WithDescription("Token endpoint request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_endpoint.duration histogram: %w", err)
	}

	m.StorageOperationTotal, err = storage.Int64Counter(
		"oauth.client.storage.operations",
		metric.WithDescription("Total number of token store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operations counter: %w", err)
	}

	m.StorageOperationDuration, err = storage.Float64Histogram(
		"oauth.client.storage.duration",
		metric.WithDescription("Token store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.duration histogram: %w", err)
	}

	return m, nil
}

// RecordAuthorizationStarted records an authorization flow start
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, clientID string) {
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordCallback records the classification of a navigation
func (m *Metrics) RecordCallback(ctx context.Context, clientID, outcome string) {
	m.CallbackClassified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("outcome", outcome),
	))
}

// RecordCodeExchange records an authorization code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID string, success bool) {
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Bool("success", success),
	))
}

// RecordTokenRefresh records a token refresh operation
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, success, rotated bool) {
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Bool("success", success),
		attribute.Bool("rotated", rotated),
	))
}

// RecordCancelled records a cancelled authorization
func (m *Metrics) RecordCancelled(ctx context.Context, clientID string) {
	m.AuthorizationCancelled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordTokenRequest records a token endpoint round trip
func (m *Metrics) RecordTokenRequest(ctx context.Context, grantType string, statusCode int, durationMs float64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("grant_type", grantType),
		attribute.Int("status", statusCode),
		attribute.Bool("transport_error", err != nil),
	}
	m.TokenRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.TokenRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("grant_type", grantType)))
}

// RecordStorageOperation records a token store operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, storageType, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("type", storageType),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("type", storageType),
	))
}

package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal        metric.Int64Counter
	LoginRequestsTotal           metric.Int64Counter
	AuthOperationDurationSeconds metric.Float64Histogram
	RevokedTokensTotal           metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the global MeterProvider; instruments created before
// tracer.InitTracingAndMetrics installs the real provider are delegated to it afterwards.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("docanalysis-auth")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.LoginRequestsTotal, err = meter.Int64Counter(
			"login_requests_total",
			metric.WithDescription("Total number of login attempts by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_requests_total: %v", err)
		}

		m.AuthOperationDurationSeconds, err = meter.Float64Histogram(
			"auth_operation_duration_seconds",
			metric.WithDescription("Duration of auth service operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_operation_duration_seconds: %v", err)
		}

		m.RevokedTokensTotal, err = meter.Int64Counter(
			"revoked_tokens_total",
			metric.WithDescription("Total number of access tokens revoked by logout"),
			metric.WithUnit("{token}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create revoked_tokens_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

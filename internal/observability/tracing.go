// Package observability wires OTLP trace export into Genkit's tracer
// provider.
//
// Genkit instruments every flow, generate and embed call with OpenTelemetry
// spans but keeps them inside its own TracerProvider. Setup attaches an
// OTLP/HTTP exporter to that provider so the spans reach a local collector
// (otel-collector, Jaeger, or a vendor agent listening on 4318).
//
// Export is optional and degrades gracefully: when the exporter cannot be
// built the application runs without tracing rather than failing startup.
//
// Config file (~/.showroom/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "showroom"
//
// Verify the collector is listening:
//
//	curl -v http://localhost:4318/v1/traces
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/showroomlabs/showroom/internal/log"
)

// DefaultEndpoint is the conventional OTLP/HTTP port on localhost.
const DefaultEndpoint = "localhost:4318"

// Config for the OTLP exporter.
type Config struct {
	// Endpoint is the collector's OTLP/HTTP address (default: localhost:4318)
	Endpoint string
	// Environment tags spans with deployment.environment
	Environment string
	// ServiceName is the service name on exported spans
	ServiceName string
}

// Setup registers an OTLP/HTTP exporter with Genkit's TracerProvider and
// returns a shutdown function that flushes pending spans. An unreachable
// collector is not an error; spans are dropped until it comes back.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider reads the service identity from the
	// standard OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("building otlp exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	tracing.TracerProvider().RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	logger.Debug("otlp tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}

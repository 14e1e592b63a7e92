package observability

import (
	"net/http"

	"postulamatch/internal/config"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    "postulamatch",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			MetricsEnabled: true,
			Prometheus:     GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability

	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	sampleRate := obs.SampleRate
	if !obs.Tracing.Enabled {
		sampleRate = 0
	} else if obs.Tracing.SampleRate > 0 {
		sampleRate = obs.Tracing.SampleRate
	}

	return ObservabilityConfig{
		ServiceName:     obs.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: obs.ServiceInstance,
		Enabled:         obs.Enabled,
		ConsoleOutput:   obs.ConsoleOutput,
		PrettyPrint:     obs.ConsoleOutput,
		SampleRate:      sampleRate,
		MetricsEnabled:  obs.Metrics.Enabled,
		Interval:        obs.Metrics.CollectionInterval,
		OTLP:            obs.OTLP,
		Prometheus:      GetPrometheusConfig(cfg),
	}
}

// SessionAttributes tags the request span with the session and route
// parameters found by key.
func SessionAttributes(param func(r *http.Request, key string) string, keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := oteltrace.SpanFromContext(r.Context())
			if span.IsRecording() {
				for _, key := range keys {
					if v := param(r, key); v != "" {
						span.SetAttributes(attribute.String("postulamatch."+key, v))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

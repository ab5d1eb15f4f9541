package tracing

import (
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("blog-backend")

// HoneycombSetup configures the OpenTelemetry SDK to export to honeycomb.
// The API key and service name are read from HONEYCOMB_API_KEY and OTEL_SERVICE_NAME.
// When disabled, the returned shutdown func is a no-op and the global tracer stays a no-op tracer.
// Commands of the given redis clients are traced too.
func HoneycombSetup(enabled bool, serviceName string, redisClients ...*redis.Client) (func(), error) {
	if !enabled {
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(honeycomb.NewBaggageSpanProcessor()),
	)
	if err != nil {
		return nil, err
	}

	GlobalTracer = otel.Tracer(serviceName)
	for _, rdb := range redisClients {
		rdb.AddHook(redisotel.NewTracingHook())
	}
	log.Debugf("honeycomb tracing set up for service: %s", serviceName)

	return otelShutdown, nil
}

// RecordError marks the span as failed without ending it.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}

package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/version"
)

// StdoutEndpoint makes the telemetry exporters write to stdout
const StdoutEndpoint = "stdout"

type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "f1p"),
		attribute.String("service.version", version.Version),
	)
	traceExp, metricExp, err := createExporters(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return &Telemetry{tp: tp, mp: mp}, nil
}

//nolint:whitespace // editor/linter issue
func createExporters(ctx context.Context) (
	sdktrace.SpanExporter, sdkmetric.Exporter, error,
) {
	if TelemetryEndpoint == StdoutEndpoint {
		te, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, err
		}
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, err
		}
		return te, me, nil
	}
	te, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(TelemetryEndpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	me, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	return te, me, nil
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx))
	if err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}

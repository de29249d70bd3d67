package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider installs a Prometheus-backed MeterProvider with Go
// runtime metrics and returns the /metrics handler and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(serviceName, serviceVersion)),
	)

	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// OrderMetrics counts lifecycle activity. It works against whatever
// MeterProvider is installed, including the no-op default in tests.
type OrderMetrics struct {
	transitions metric.Int64Counter
	rejected    metric.Int64Counter
	shortages   metric.Int64Counter
	publishErrs metric.Int64Counter
}

func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter("bookshelf/orders")

	transitions, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Successful order lifecycle operations"))
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("orders.transitions.rejected",
		metric.WithDescription("Lifecycle operations refused by a precondition"))
	if err != nil {
		return nil, err
	}

	shortages, err := meter.Int64Counter("orders.stock.shortages",
		metric.WithDescription("Line items that blocked a shipment"))
	if err != nil {
		return nil, err
	}

	publishErrs, err := meter.Int64Counter("orders.events.publish_errors",
		metric.WithDescription("Change events that could not be published"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{
		transitions: transitions,
		rejected:    rejected,
		shortages:   shortages,
		publishErrs: publishErrs,
	}, nil
}

func (m *OrderMetrics) Transition(ctx context.Context, action string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *OrderMetrics) Rejected(ctx context.Context, action string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *OrderMetrics) Shortages(ctx context.Context, n int) {
	m.shortages.Add(ctx, int64(n))
}

func (m *OrderMetrics) PublishError(ctx context.Context, table string) {
	m.publishErrs.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

package observability

import (
	"net/http"

	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
)

// Stack is the observability wiring of the payment service: one dedicated prometheus
// registry carrying the RED instruments and the sales metrics, a tracer and the logger.
type Stack struct {
	observability.Observability

	Registry *prometrics.Registry
	Sales    *prometrics.SalesMetrics
}

// NewStack registers every instrument the service exposes on a fresh registry.
func NewStack(tracerName string, logger observability.Logger) *Stack {
	reg := prometrics.New("", "")
	counters, histograms := reg.RED()
	return &Stack{
		Observability: New(oteltrace.New(tracerName), logger, counters, histograms),
		Registry:      reg,
		Sales:         prometrics.NewSalesMetrics(reg.Registerer()),
	}
}

// MetricsHandler serves the exposition text of the stack's registry.
func (s *Stack) MetricsHandler() http.Handler { return s.Registry.Handler() }

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics instruments
}

// instruments resolves metric keys to registered instruments; unknown keys get nop ones so
// callers never branch on availability.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m instruments) Counter(name observability.MetricKey) observability.Counter {
	if c := m.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h := m.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New assembles an Observability provider; nil parts fall back to nop implementations.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: instruments{counters: counters, histograms: histograms},
	}
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }

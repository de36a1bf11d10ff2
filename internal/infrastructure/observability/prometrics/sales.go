package prometrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	UnitBuckets  = []float64{1, 2, 5, 10, 100}
	ValueBuckets = []float64{100, 200, 500, 1000, 2000, 5000, 10000}
)

// SalesMetrics holds the process-wide sales instruments. Prometheus collectors are
// safe for concurrent use, so no extra locking is needed.
type SalesMetrics struct {
	Sold      prometheus.Counter
	Units     prometheus.Histogram
	CartValue prometheus.Histogram
}

func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	m := &SalesMetrics{
		Sold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sold_count",
			Help: "Running count of items sold",
		}),
		Units: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "units_sold",
			Help:    "Average Unit Sale",
			Buckets: UnitBuckets,
		}),
		CartValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cart_value",
			Help:    "Average Value Sale",
			Buckets: ValueBuckets,
		}),
	}
	reg.MustRegister(m.Sold, m.Units, m.CartValue)
	return m
}

// RecordSale adds units to the sold counter and observes both distributions.
// A negative unit count is rejected because the counter can only grow.
func (m *SalesMetrics) RecordSale(units int, total decimal.Decimal) error {
	if units < 0 {
		return fmt.Errorf("sales metrics: counter cannot decrease by %d units", -units)
	}
	m.Sold.Add(float64(units))
	m.Units.Observe(float64(units))
	m.CartValue.Observe(total.InexactFloat64())
	return nil
}

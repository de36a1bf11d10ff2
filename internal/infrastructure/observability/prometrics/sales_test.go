package prometrics

import (
	"strings"
	"testing"

	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesMetrics_RecordSale(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSalesMetrics(reg)

	require.NoError(t, m.RecordSale(3, decimal.NewFromInt(150)))
	require.NoError(t, m.RecordSale(1, decimal.RequireFromString("2500.50")))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Sold))

	expected := `
# HELP units_sold Average Unit Sale
# TYPE units_sold histogram
units_sold_bucket{le="1"} 1
units_sold_bucket{le="2"} 1
units_sold_bucket{le="5"} 2
units_sold_bucket{le="10"} 2
units_sold_bucket{le="100"} 2
units_sold_bucket{le="+Inf"} 2
units_sold_sum 4
units_sold_count 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "units_sold"))

	expected = `
# HELP cart_value Average Value Sale
# TYPE cart_value histogram
cart_value_bucket{le="100"} 0
cart_value_bucket{le="200"} 1
cart_value_bucket{le="500"} 1
cart_value_bucket{le="1000"} 1
cart_value_bucket{le="2000"} 1
cart_value_bucket{le="5000"} 2
cart_value_bucket{le="10000"} 2
cart_value_bucket{le="+Inf"} 2
cart_value_sum 2650.5
cart_value_count 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cart_value"))
}

func TestSalesMetrics_RejectsNegativeUnits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSalesMetrics(reg)

	err := m.RecordSale(-2, decimal.NewFromInt(10))

	require.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Sold))

	n, err := testutil.GatherAndCount(reg, "units_sold")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_CounterRegisteredOnce(t *testing.T) {
	r := New("", "")

	a := r.Counter("things_total", "Things.", "kind")
	b := r.Counter("things_total", "Things.", "kind")
	a.Add(1, observability.L("kind", "x"))
	b.Bind(observability.L("kind", "x")).Add(2)

	n, err := testutil.GatherAndCount(r.Gatherer(), "things_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

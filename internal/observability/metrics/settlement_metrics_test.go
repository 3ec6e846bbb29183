package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSettlementMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSettlementMetrics(registry, Config{ServiceName: "closerclaus", Environment: "test"})

	m.IncPayout("commission", "paid")
	m.IncPayout("commission", "paid")
	m.IncPayout("salary", "held")
	m.AddPayoutAmount("commission", 95000)
	m.AddPayoutAmount("commission", -5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.payoutOutcomes.WithLabelValues("commission", "paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.payoutOutcomes.WithLabelValues("salary", "held")))
	assert.Equal(t, float64(95000), testutil.ToFloat64(m.payoutAmount.WithLabelValues("commission")))
}

func TestNilSettlementMetricsIsSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncBatchRun(BatchOutcomeCompleted)
	m.IncNotification("store", "delivered")
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	BatchOutcomeCompleted     = "completed"
	BatchOutcomeNotConfigured = "not_configured"
	BatchOutcomeLocked        = "locked"
	BatchOutcomeError         = "error"
)

// SettlementMetrics tracks commissions, agency charges, payouts and the
// notifications they trigger.
type SettlementMetrics struct {
	batchRuns      *prometheus.CounterVec
	batchDuration  prometheus.Observer
	payoutOutcomes *prometheus.CounterVec
	payoutAmount   *prometheus.CounterVec
	commissions    *prometheus.CounterVec
	agencyCharges  *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	ledgerEntries  *prometheus.CounterVec
}

var (
	settlementMetricsOnce sync.Once
	settlementMetrics     *SettlementMetrics
)

// Settlement returns the singleton settlement metrics registry.
func Settlement() *SettlementMetrics {
	return SettlementWithConfig(Config{})
}

// SettlementWithConfig returns the singleton settlement metrics registry using config labels.
func SettlementWithConfig(cfg Config) *SettlementMetrics {
	settlementMetricsOnce.Do(func() {
		settlementMetrics = newSettlementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return settlementMetrics
}

// ResetSettlementMetricsForTest resets the settlement metrics singleton for tests.
func ResetSettlementMetricsForTest() {
	settlementMetricsOnce = sync.Once{}
	settlementMetrics = nil
}

func newSettlementMetrics(registerer prometheus.Registerer, cfg Config) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	batchRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_payout_batch_runs_total",
		Help:        "Payout batch runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "closerclaus_payout_batch_duration_seconds",
		Help:        "Wall time of a payout batch run.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})
	payoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_payout_records_total",
		Help:        "Payout records processed by kind and resulting status.",
		ConstLabels: constLabels,
	}, []string{"kind", "status"})
	payoutAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_payout_amount_minor_total",
		Help:        "Minor units transferred to SDRs by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	commissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_commissions_recorded_total",
		Help:        "Commission records written by closer type and result.",
		ConstLabels: constLabels,
	}, []string{"closed_by", "result"})
	agencyCharges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_agency_charges_total",
		Help:        "Agency charges by kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_notifications_total",
		Help:        "Notification deliveries by channel and outcome.",
		ConstLabels: constLabels,
	}, []string{"channel", "outcome"})

	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "closerclaus_ledger_entries_total",
		Help:        "Ledger entries posted by source type.",
		ConstLabels: constLabels,
	}, []string{"source_type"})

	registerer.MustRegister(batchRuns, batchDuration, payoutOutcomes, payoutAmount, commissions, agencyCharges, notifications, ledgerEntries)

	return &SettlementMetrics{
		batchRuns:      batchRuns,
		batchDuration:  batchDuration,
		payoutOutcomes: payoutOutcomes,
		payoutAmount:   payoutAmount,
		commissions:    commissions,
		agencyCharges:  agencyCharges,
		notifications:  notifications,
		ledgerEntries:  ledgerEntries,
	}
}

func (m *SettlementMetrics) IncBatchRun(outcome string) {
	if m == nil {
		return
	}
	m.batchRuns.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) ObserveBatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

func (m *SettlementMetrics) IncPayout(kind, status string) {
	if m == nil {
		return
	}
	m.payoutOutcomes.WithLabelValues(kind, status).Inc()
}

func (m *SettlementMetrics) AddPayoutAmount(kind string, minor int64) {
	if m == nil || minor <= 0 {
		return
	}
	m.payoutAmount.WithLabelValues(kind).Add(float64(minor))
}

func (m *SettlementMetrics) IncCommission(closedBy, result string) {
	if m == nil {
		return
	}
	m.commissions.WithLabelValues(closedBy, result).Inc()
}

func (m *SettlementMetrics) IncAgencyCharge(kind, outcome string) {
	if m == nil {
		return
	}
	m.agencyCharges.WithLabelValues(kind, outcome).Inc()
}

func (m *SettlementMetrics) IncNotification(channel, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

func (m *SettlementMetrics) IncLedgerEntry(sourceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(sourceType).Inc()
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes the repayment engine's operational counters on a
// private registry.
type Collector struct {
	registry *prometheus.Registry

	transfersInitiated prometheus.Counter
	transfersFailed    prometheus.Counter
	paymentsOverdue    prometheus.Counter
	sweepConflicts     prometheus.Counter
	sweepDuration      prometheus.Histogram
	loansByStatus      *prometheus.GaugeVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		transfersInitiated: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "repayment_transfers_initiated_total",
			Help: "ACH debits handed to the transfer gateway",
		}),
		transfersFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "repayment_transfers_failed_total",
			Help: "Transfer initiations rejected synchronously",
		}),
		paymentsOverdue: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "repayment_payments_overdue_total",
			Help: "Payments flipped to overdue by the delinquency sweep",
		}),
		sweepConflicts: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "repayment_sweep_conflicts_total",
			Help: "Benign state conflicts lost to a concurrent run",
		}),
		sweepDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "repayment_sweep_duration_seconds",
			Help:    "Wall time of one orchestrator sweep",
			Buckets: prometheus.DefBuckets,
		}),
		loansByStatus: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "repayment_loans_by_status",
			Help: "Loans per lifecycle status",
		}, []string{"status"}),
	}
}

func (c *Collector) RecordSweep(d time.Duration, initiated, failed, overdue, conflicts int) {
	c.sweepDuration.Observe(d.Seconds())
	c.transfersInitiated.Add(float64(initiated))
	c.transfersFailed.Add(float64(failed))
	c.paymentsOverdue.Add(float64(overdue))
	c.sweepConflicts.Add(float64(conflicts))
}

func (c *Collector) SetLoanGauge(status string, n int) {
	c.loansByStatus.WithLabelValues(status).Set(float64(n))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

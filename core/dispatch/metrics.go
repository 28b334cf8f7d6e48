package dispatch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionsTotal   *prometheus.CounterVec
	decisionLatency  prometheus.Histogram
	circuitsShed     *prometheus.CounterVec
	shortfallTotal   prometheus.Counter
	decisionRejected *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec) {
	dec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedding_decisions_total",
			Help: "Number of decisions by selected source",
		},
		[]string{"source"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shedding_decision_duration_seconds",
			Help:    "Time spent computing a decision",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		},
	)
	shed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedding_circuits_shed_total",
			Help: "Number of circuits switched off",
		},
		[]string{"critical"},
	)
	short := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shedding_demand_exceeds_supply_total",
			Help: "Number of decisions where demand exceeded available power",
		},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shedding_decisions_rejected_total",
			Help: "Number of decision requests rejected during validation",
		},
		[]string{"reason"},
	)
	return dec, lat, shed, short, rej
}

func init() {
	decisionsTotal, decisionLatency, circuitsShed, shortfallTotal, decisionRejected = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers decision metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(decisionsTotal, decisionLatency, circuitsShed, shortfallTotal, decisionRejected)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	decisionsTotal, decisionLatency, circuitsShed, shortfallTotal, decisionRejected = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func criticalLabel(c bool) string { return strconv.FormatBool(c) }

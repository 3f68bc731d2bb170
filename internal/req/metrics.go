package req

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lmake/internal/graph"
)

// Metrics exports Stats as Prometheus collectors (spec §4.7 DOMAIN note:
// "stats are additionally exported as prometheus counters/gauges ...
// additive to, never a replacement for, the audit protocol"), grounded on
// the explicit-Registry/NewCounterVec/NewGaugeVec idiom from
// r3e-network-service_layer/pkg/metrics/metrics.go (also present, in
// shorter form, in ClusterCockpit-cc-backend/internal/metricdata).
type Metrics struct {
	registry *prometheus.Registry

	jobsEnded *prometheus.CounterVec
	reqETA    prometheus.Gauge
	workload  prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors on a new registry. Callers
// that want to serve them over HTTP wire registry.Handler() (via
// promhttp.HandlerFor) into their own mux; Metrics does not open a listener
// itself.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	jobsEnded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmake",
			Name:      "jobs_ended_total",
			Help:      "Total number of jobs that reached a terminal ExecStatus, by kind.",
		},
		[]string{"kind"},
	)
	reqETA := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lmake",
			Name:      "req_eta_seconds",
			Help:      "Current estimated time remaining for the in-flight Req, in seconds.",
		},
	)
	workload := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lmake",
			Name:      "workload_tokens",
			Help:      "Tokens currently held by running jobs across all backends.",
		},
	)

	reg.MustRegister(jobsEnded, reqETA, workload)

	return &Metrics{
		registry:  reg,
		jobsEnded: jobsEnded,
		reqETA:    reqETA,
		workload:  workload,
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveJobEnd records one terminal job outcome (spec "lmake_jobs_ended_total{kind}").
func (m *Metrics) ObserveJobEnd(status graph.ExecStatus) {
	m.jobsEnded.WithLabelValues(execStatusLabel(status)).Inc()
}

// SetETA publishes the Req's current ETA (spec "lmake_req_eta_seconds").
func (m *Metrics) SetETA(eta time.Duration) {
	m.reqETA.Set(eta.Seconds())
}

// SetWorkloadTokens publishes the current held-token total (spec
// "lmake_workload_tokens"); callers in internal/backend feed this from
// Workload.Held().
func (m *Metrics) SetWorkloadTokens(tokens int) {
	m.workload.Set(float64(tokens))
}

func execStatusLabel(s graph.ExecStatus) string {
	switch s {
	case graph.ExecOk:
		return "ok"
	case graph.ExecEarlyErr:
		return "early_err"
	case graph.ExecLateLost:
		return "late_lost"
	case graph.ExecRunErr:
		return "run_err"
	case graph.ExecUpToDate:
		return "up_to_date"
	default:
		return "none"
	}
}

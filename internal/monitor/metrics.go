package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_monitor_evaluations_total",
			Help: "Total number of account evaluations by verdict",
		},
		[]string{"verdict"},
	)

	breachesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_monitor_breaches_total",
			Help: "Total number of breaches detected by kind",
		},
		[]string{"kind"},
	)

	profitTargetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_monitor_profit_targets_total",
			Help: "Total number of profit targets reached",
		},
	)

	baselineResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_monitor_baseline_resets_total",
			Help: "Total number of daily baseline rollovers",
		},
	)

	notificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_monitor_notification_failures_total",
			Help: "Outbound notifications dropped after a delivery failure",
		},
		[]string{"kind"},
	)

	persistenceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_monitor_persistence_failures_total",
			Help: "Baseline or status writes that failed and were discarded",
		},
	)

	activeListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "challenge_monitor_active_listeners",
			Help: "Number of accounts with a live push subscription",
		},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "challenge_monitor_evaluation_duration_seconds",
			Help:    "Duration of one account evaluation pass including the observation fetch",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(breachesTotal)
	prometheus.MustRegister(profitTargetsTotal)
	prometheus.MustRegister(baselineResetsTotal)
	prometheus.MustRegister(notificationFailuresTotal)
	prometheus.MustRegister(persistenceFailuresTotal)
	prometheus.MustRegister(activeListeners)
	prometheus.MustRegister(evaluationDuration)
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvaluation records the verdict of one evaluation.
func RecordEvaluation(verdict string) {
	evaluationsTotal.WithLabelValues(verdict).Inc()
}

// RecordBreach records a detected breach.
func RecordBreach(kind string) {
	breachesTotal.WithLabelValues(kind).Inc()
}

// RecordProfitTarget records a reached profit target.
func RecordProfitTarget() {
	profitTargetsTotal.Inc()
}

// RecordBaselineReset records a daily baseline rollover.
func RecordBaselineReset() {
	baselineResetsTotal.Inc()
}

// RecordNotificationFailure records a dropped outbound notification.
func RecordNotificationFailure(kind string) {
	notificationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordPersistenceFailure records a discarded store write failure.
func RecordPersistenceFailure() {
	persistenceFailuresTotal.Inc()
}

// ListenerStarted / ListenerStopped track the push subscription gauge.
func ListenerStarted() { activeListeners.Inc() }
func ListenerStopped() { activeListeners.Dec() }

// ObserveEvaluation records the duration of one evaluation pass.
func ObserveEvaluation(d time.Duration) {
	evaluationDuration.Observe(d.Seconds())
}

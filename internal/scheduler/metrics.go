package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medreminders"

// Metrics del daemon. Un nil *Metrics es válido y no registra nada.
type Metrics struct {
	cycles        *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	notifyFailed  *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastDue       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Ciclos del scheduler por resultado (ok, error, lock_busy).",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "reminders_total",
			Help:      "Recordatorios procesados por resultado.",
		}, []string{"outcome"}),
		notifyFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "failures_total",
			Help:      "Entregas fallidas por canal.",
		}, []string{"channel"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Duración de cada ciclo.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "due_reminders",
			Help:      "Recordatorios vencidos encontrados en el último ciclo.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.outcomes, m.notifyFailed, m.cycleDuration, m.lastDue)
	}
	return m
}

// NotificationFailed sirve como notify.FailureObserver.
func (m *Metrics) NotificationFailed(channel string, _ error) {
	if m == nil {
		return
	}
	m.notifyFailed.WithLabelValues(channel).Inc()
}

func (m *Metrics) observeCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) observeDue(n int) {
	if m == nil {
		return
	}
	m.lastDue.Set(float64(n))
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o)).Inc()
}

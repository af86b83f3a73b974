// Package metrics defines the Prometheus instrumentation shared by the
// evaluator, the watcher, and the admin gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics bundles the scheduler's collectors. Construct one per process with
// a fresh registry so tests never collide on metric names.
type Metrics struct {
	TriggersFired prometheus.Counter
	Deliveries    *prometheus.CounterVec
	SpoolPending  prometheus.GaugeFunc
}

// MustNew builds and registers the collectors on reg. Registration errors
// panic, mirroring promauto semantics: a duplicate name is a configuration
// bug worth surfacing early. pendingFn reports the current spool depth; nil
// disables the gauge.
func MustNew(reg prometheus.Registerer, pendingFn func() float64) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		TriggersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cronspool",
			Name:      "triggers_fired_total",
			Help:      "Triggers committed to the spool by the evaluator.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronspool",
			Name:      "deliveries_total",
			Help:      "Trigger delivery attempts by outcome.",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{m.TriggersFired, m.Deliveries}

	if pendingFn != nil {
		m.SpoolPending = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cronspool",
			Name:      "spool_pending",
			Help:      "Trigger files currently pending in the spool.",
		}, pendingFn)
		collectors = append(collectors, m.SpoolPending)
	}

	reg.MustRegister(collectors...)
	return m
}

// Package metrics exposes Prometheus counters for recycle bin activity.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	SoftDeletes     *prometheus.CounterVec
	Restores        *prometheus.CounterVec
	Purges          prometheus.Counter
	Swept           prometheus.Counter
	SweepRuns       *prometheus.CounterVec
	CascadeFailures prometheus.Counter
}

func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		SoftDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "soft_deletes_total",
			Help:      "Records moved into the recycle bin, by kind.",
		}, []string{"kind"}),
		Restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "restores_total",
			Help:      "Recycle bin restores, by kind and result.",
		}, []string{"kind", "result"}),
		Purges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "purges_total",
			Help:      "Held records permanently deleted by an operator.",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "swept_total",
			Help:      "Held records removed by the retention sweep.",
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "sweep_runs_total",
			Help:      "Retention sweep executions, by result.",
		}, []string{"result"}),
		CascadeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle_bin",
			Name:      "partial_restores_total",
			Help:      "Restores that stopped partway and left earlier steps applied.",
		}),
	}

	for _, c := range []prometheus.Collector{r.SoftDeletes, r.Restores, r.Purges, r.Swept, r.SweepRuns, r.CascadeFailures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return r, nil
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (r *Recorder) SoftDeleted(kind string) {
	if r == nil {
		return
	}
	r.SoftDeletes.WithLabelValues(kind).Inc()
}

func (r *Recorder) Restored(kind string, ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.Restores.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) Purged(n int) {
	if r == nil {
		return
	}
	r.Purges.Add(float64(n))
}

func (r *Recorder) SweepFinished(removed int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.SweepRuns.WithLabelValues("failure").Inc()
		return
	}
	r.SweepRuns.WithLabelValues("success").Inc()
	r.Swept.Add(float64(removed))
}

func (r *Recorder) PartialRestore() {
	if r == nil {
		return
	}
	r.CascadeFailures.Inc()
}

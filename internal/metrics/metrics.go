// Package metrics exposes prometheus counters for prune runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "deletarr"

// Recorder owns a private registry so tests and multiple instances never
// collide on the default one. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	candidates   *prometheus.GaugeVec
	budgetAborts *prometheus.CounterVec
	deleted      prometheus.Counter
	duration     prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Prune runs by mode and result.",
		}, []string{"mode", "result"}),
		candidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Torrents selected for deletion in the last run, per service.",
		}, []string{"service"}),
		budgetAborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_aborts_total",
			Help:      "Service batches aborted by maxDeletePercent.",
		}, []string{"service"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_total",
			Help:      "Torrents removed from the download client.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of prune runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	registry.MustRegister(r.runs, r.candidates, r.budgetAborts, r.deleted, r.duration)

	log.Debug().Msg("metrics recorder initialized")
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of a finished run.
func (r *Recorder) ObserveRun(dryRun, success bool, took time.Duration) {
	if r == nil {
		return
	}
	mode := "live"
	if dryRun {
		mode = "dry"
	}
	result := "success"
	if !success {
		result = "failure"
	}
	r.runs.WithLabelValues(mode, result).Inc()
	r.duration.Observe(took.Seconds())
}

func (r *Recorder) SetCandidates(service string, n int) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(service).Set(float64(n))
}

func (r *Recorder) BudgetAbort(service string) {
	if r == nil {
		return
	}
	r.budgetAborts.WithLabelValues(service).Inc()
}

func (r *Recorder) AddDeleted(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.deleted.Add(float64(n))
}

// Package metrics exposes Prometheus collectors for download activity. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anyvidow"

type Metrics struct {
	registry      *prometheus.Registry
	activeJobs    prometheus.Gauge
	downloads     *prometheus.CounterVec
	mergeAttempts *prometheus.CounterVec
	playlistItems *prometheus.CounterVec
	resolves      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Download jobs currently running.",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Finished download jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		mergeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_attempts_total",
			Help:      "ffmpeg merge attempts by strategy and outcome.",
		}, []string{"tier", "outcome"}),
		playlistItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlist_items_total",
			Help:      "Playlist entries processed by outcome.",
		}, []string{"outcome"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "URL resolutions by result type.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeJobs,
		m.downloads,
		m.mergeAttempts,
		m.playlistItems,
		m.resolves,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

func (m *Metrics) JobFinished(kind, outcome string) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.downloads.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) MergeAttempt(tier string, ok bool) {
	if m == nil {
		return
	}
	m.mergeAttempts.WithLabelValues(tier, outcome(ok)).Inc()
}

func (m *Metrics) PlaylistItem(ok bool) {
	if m == nil {
		return
	}
	m.playlistItems.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) Resolve(result string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(result).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

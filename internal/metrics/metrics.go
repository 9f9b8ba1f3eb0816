// Package metrics holds the Prometheus collectors of the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ForumRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fc_forum_request_duration_seconds",
		Help:    "Duration of forum page requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "status"})

	ProfileFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fc_profile_fetch_total",
		Help: "Profile lookups by outcome",
	}, []string{"result"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fc_cache_lookups_total",
		Help: "Profile cache lookups by tier and result",
	}, []string{"tier", "result"})

	BadgesRendered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fc_badges_rendered_total",
		Help: "Badges written into pages by state",
	}, []string{"state"})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fc_sessions_active",
		Help: "Page sessions held by the HTTP service",
	})

	ConfigReloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fc_config_updated_total",
		Help: "CONFIG_UPDATED notifications handled",
	})
)

// MustRegister registers every collector.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ForumRequestDuration,
		ProfileFetches,
		CacheLookups,
		BadgesRendered,
		SessionsActive,
		ConfigReloads,
	)
}

// ObserveForumRequest records the duration and outcome of one page request.
func ObserveForumRequest(kind string, start time.Time, err error) {
	if kind == "" {
		kind = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ForumRequestDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
}

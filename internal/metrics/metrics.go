// Package metrics holds Prometheus instruments that are used across the
// process.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CachedDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolver_cached_domains",
			Help: "Number of domain entries currently held in the resolver cache.  A connection with several domains contributes one entry per domain.",
		})

	ResolveHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_hits_total",
			Help: "Cumulative number of domain resolutions served from cache.",
		})

	ResolveMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_misses_total",
			Help: "Cumulative number of domain resolutions that required a registry lookup.",
		})

	ResolveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_load_errors_total",
			Help: "Cumulative number of registry lookup failures.",
		})

	InvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_invalidations_total",
			Help: "Cumulative number of cache invalidations (explicit or TTL).",
		})

	UnknownDomainTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routing_unknown_domain_total",
			Help: "Cumulative number of requests rejected because the Host matched no connection.",
		})

	UsageSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_samples_written_total",
			Help: "Cumulative number of per-tenant usage samples appended to the metadata store.",
		})
)

func init() {
	prometheus.MustRegister(
		CachedDomains,
		ResolveHitsTotal,
		ResolveMissesTotal,
		ResolveErrorsTotal,
		InvalidationsTotal,
		UnknownDomainTotal,
		UsageSamplesTotal,
	)
}

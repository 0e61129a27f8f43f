package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Redirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_requests_total",
		Help: "Total redirects to the frontend.",
	})
	Shortens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shorten_requests_total",
		Help: "Total short links created.",
	})
	Visits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Recorded visits by visitor novelty.",
	}, []string{"kind"})
	IDCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "short_id_collisions_total",
		Help: "Generated short ids that were already taken.",
	})
	CacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hit_total",
		Help: "Cache hits.",
	}, []string{"kind"})
	CacheMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_miss_total",
		Help: "Cache misses.",
	}, []string{"kind"})
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_errors_total",
		Help: "Store failures by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(Redirects, Shortens, Visits, IDCollisions, CacheHit, CacheMiss, StoreErrors)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

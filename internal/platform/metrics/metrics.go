package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	likeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petition_like_requests_total",
		Help: "Like endpoint requests by method and outcome",
	}, []string{"method", "status"})

	likesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petition_likes_recorded_total",
		Help: "New likes accepted into the ledger",
	})

	storeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "petition_store_request_duration_seconds",
		Help:    "Round-trip time of store operations",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveLikeRequest(method, status string) {
	likeRequestsTotal.WithLabelValues(method, status).Inc()
}

func IncLikeRecorded() {
	likesRecordedTotal.Inc()
}

func ObserveStoreDuration(seconds float64) {
	storeDuration.Observe(seconds)
}

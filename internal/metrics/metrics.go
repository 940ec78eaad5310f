package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "store_reads_total", Help: "Record store reads by effective source",
	}, []string{"collection", "source"})
	StoreWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "store_writes_total", Help: "Record store writes by outcome",
	}, []string{"collection", "result"})
	RemoteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "remote_errors_total", Help: "Classified remote store failures",
	}, []string{"kind"})
	RemoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal", Name: "remote_seconds", Help: "Remote store call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	Connectivity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "portal", Name: "connectivity_state", Help: "1 for the current connectivity status",
	}, []string{"status"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "http_requests_total", Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
)

var statuses = []string{"uninitialized", "ready", "error"}

func init() {
	prometheus.MustRegister(StoreReads, StoreWrites, RemoteErrors, RemoteLatency, Connectivity, HTTPRequests)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveRemote(op string, d time.Duration) { RemoteLatency.WithLabelValues(op).Observe(d.Seconds()) }

// SetConnectivity выставляет 1 текущему статусу и 0 остальным.
func SetConnectivity(status string) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		Connectivity.WithLabelValues(s).Set(v)
	}
}

package executor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignsync_operations_total",
		Help: "Remote assignment operations by phase and outcome.",
	}, []string{"phase", "status"})

	batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assignsync_batch_duration_seconds",
		Help:    "Latency of one batch submission or assign call.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 10},
	}, []string{"phase"})
)

func init() {
	prometheus.MustRegister(opsTotal, batchDuration)
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codejudge",
		Name:      "executions_total",
		Help:      "Code executions by outcome.",
	}, []string{"outcome"})

	pollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codejudge",
		Name:      "poll_attempts",
		Help:      "Polls made per submission before it finished or gave up.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})
)

// RecordExecution counts one finished execution under its outcome label.
func RecordExecution(outcome string) {
	executions.WithLabelValues(outcome).Inc()
}

// ObservePollAttempts records how many polls one submission needed.
func ObservePollAttempts(n int) {
	pollAttempts.Observe(float64(n))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayRequestDuration)
}

var gatewayRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Outbound provider API call latency by provider, operation and result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"provider", "op", "result"},
)

func ObserveGatewayRequest(provider, op string, d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	gatewayRequestDuration.WithLabelValues(norm(provider), norm(op), result).Observe(d.Seconds())
}

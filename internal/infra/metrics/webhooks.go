package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookDeliveriesTotal,
		webhookSignatureFailures,
	)
}

var (
	// result: accepted|duplicate|ignored|rejected
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Inbound webhook deliveries by provider and processing result.",
		},
		[]string{"provider", "result"},
	)

	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for an invalid or missing signature.",
		},
		[]string{"provider"},
	)
)

func IncWebhookDelivery(provider, result string) {
	webhookDeliveriesTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func IncSignatureFailure(provider string) {
	webhookSignatureFailures.WithLabelValues(norm(provider)).Inc()
}

package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	connectionsActive      *prometheus.GaugeVec
	connectionsTotal       *prometheus.CounterVec
	deliveriesTotal        *prometheus.CounterVec
	messagesSentTotal      prometheus.Counter
	presenceTransitions    *prometheus.CounterVec
	alertsPublishedTotal   *prometheus.CounterVec
	relayEnvelopesReceived *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		connectionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Live realtime connections by transport.",
		}, []string{"transport"})

		connectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Realtime connections opened, by transport and identity.",
		}, []string{"transport", "identity"})

		deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Event deliveries attempted by the fan-out dispatcher.",
		}, []string{"mode", "outcome"})

		messagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages persisted by the message store.",
		})

		presenceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_transitions_total",
			Help: "Presence transitions by resulting status and outcome.",
		}, []string{"status", "outcome"})

		alertsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_published_total",
			Help: "Inventory, sales and targeted notifications dispatched.",
		}, []string{"kind"})

		relayEnvelopesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_relay_envelopes_total",
			Help: "Envelopes received from other nodes through the relay.",
		}, []string{"backend"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			connectionsActive,
			connectionsTotal,
			deliveriesTotal,
			messagesSentTotal,
			presenceTransitions,
			alertsPublishedTotal,
			relayEnvelopesReceived,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ConnectionsActive exposes the live connection gauge.
func ConnectionsActive() *prometheus.GaugeVec {
	RegisterMetrics()
	return connectionsActive
}

// ConnectionsTotal exposes the opened connection counter.
func ConnectionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return connectionsTotal
}

// Deliveries exposes the dispatcher delivery counter.
func Deliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return deliveriesTotal
}

// MessagesSent exposes the persisted message counter.
func MessagesSent() prometheus.Counter {
	RegisterMetrics()
	return messagesSentTotal
}

// PresenceTransitions exposes the presence transition counter.
func PresenceTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceTransitions
}

// AlertsPublished exposes the alert counter.
func AlertsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return alertsPublishedTotal
}

// RelayEnvelopes exposes the relay receive counter.
func RelayEnvelopes() *prometheus.CounterVec {
	RegisterMetrics()
	return relayEnvelopesReceived
}

// MetricsHandler serves the default registry, with OpenMetrics negotiation enabled.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

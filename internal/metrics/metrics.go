package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ModelVariables is the size of the last generated model by variable kind
	ModelVariables = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "evdarp_model_variables", Help: "Variables of the last generated model."},
		[]string{"kind"},
	)
	// FamilyRows is the row count of every constraint family in the last model
	FamilyRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "evdarp_family_rows", Help: "Rows per constraint family of the last generated model."},
		[]string{"family"},
	)
	// Solves counts solver outcomes by solver and status
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "evdarp_solves_total", Help: "Solves by solver and outcome."},
		[]string{"solver", "status"},
	)
	// StageDuration tracks pipeline stage latencies in milliseconds
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "evdarp_stage_duration_ms", Help: "Pipeline stage duration in ms.", Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000, 120000}},
		[]string{"stage"},
	)
	// WebhookDeliveries counts run notifications by outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "evdarp_webhook_deliveries_total", Help: "Run webhook deliveries by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ModelVariables)
		Registry.MustRegister(FamilyRows)
		Registry.MustRegister(Solves)
		Registry.MustRegister(StageDuration)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

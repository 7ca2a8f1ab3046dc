// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	InstructionsTotal  *prometheus.CounterVec
	InstructionLatency *prometheus.HistogramVec
	AccountsCreated    prometheus.Counter
	AccountsClosed     prometheus.Counter

	// Program metrics
	SwapVolume     *prometheus.CounterVec
	ProtocolFees   *prometheus.CounterVec
	ActiveStakes   prometheus.Gauge
	ActiveListings prometheus.Gauge

	// API metrics
	HTTPRequests      *prometheus.CounterVec
	RateLimited       prometheus.Counter
	StreamSubscribers prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_custody_lab"
	}

	return &Metrics{
		// Ledger metrics
		InstructionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "instructions_total",
			Help:      "Total number of instructions by program, name and status",
		}, []string{"program", "instruction", "status"}),
		InstructionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "instruction_duration_seconds",
			Help:      "Instruction execution latency",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"program", "instruction"}),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "accounts_created_total",
			Help:      "Total number of accounts created",
		}),
		AccountsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "accounts_closed_total",
			Help:      "Total number of accounts closed and reclaimed",
		}),

		// Program metrics
		SwapVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amm",
			Name:      "swap_volume_total",
			Help:      "Total input amount swapped by direction",
		}, []string{"direction"}),
		ProtocolFees: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "programs",
			Name:      "protocol_fees_total",
			Help:      "Total fees collected by program",
		}, []string{"program"}),
		ActiveStakes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "staking",
			Name:      "active_stakes",
			Help:      "Number of currently staked assets",
		}),
		ActiveListings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "active_listings",
			Help:      "Number of open marketplace listings",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		}),
		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_subscribers",
			Help:      "Current number of websocket stream subscribers",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInstruction records one instruction outcome and its latency.
func RecordInstruction(program, instruction, status string, seconds float64) {
	DefaultMetrics.InstructionsTotal.WithLabelValues(program, instruction, status).Inc()
	DefaultMetrics.InstructionLatency.WithLabelValues(program, instruction).Observe(seconds)
}

// RecordAccountLifecycle records accounts created and closed by one commit.
func RecordAccountLifecycle(created, closed int) {
	DefaultMetrics.AccountsCreated.Add(float64(created))
	DefaultMetrics.AccountsClosed.Add(float64(closed))
}

// RecordSwap records swap input volume for a direction ("x_to_y" or "y_to_x").
func RecordSwap(direction string, amountIn uint64) {
	DefaultMetrics.SwapVolume.WithLabelValues(direction).Add(float64(amountIn))
}

// RecordFee records a protocol fee.
func RecordFee(program string, amount uint64) {
	DefaultMetrics.ProtocolFees.WithLabelValues(program).Add(float64(amount))
}

// AddActiveStakes adjusts the active stakes gauge.
func AddActiveStakes(delta int) {
	DefaultMetrics.ActiveStakes.Add(float64(delta))
}

// AddActiveListings adjusts the active listings gauge.
func AddActiveListings(delta int) {
	DefaultMetrics.ActiveListings.Add(float64(delta))
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}

// RecordRateLimited records a request rejected by the limiter.
func RecordRateLimited() {
	DefaultMetrics.RateLimited.Inc()
}

// AddStreamSubscribers adjusts the websocket subscriber gauge.
func AddStreamSubscribers(delta int) {
	DefaultMetrics.StreamSubscribers.Add(float64(delta))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TransactionsProcessed *prometheus.CounterVec
	ComputeUnitsConsumed  prometheus.Histogram
	FeesCollected         prometheus.Counter
	InstructionErrors     *prometheus.CounterVec
	AirdroppedLamports    prometheus.Counter
	CurrentSlot           prometheus.Gauge

	// Escrow metrics
	EscrowEvents *prometheus.CounterVec
	EscrowVolume *prometheus.CounterVec

	// Indexer metrics
	IndexerBufferSize prometheus.Gauge
	RecordsStored     *prometheus.CounterVec
	IndexerErrors     *prometheus.CounterVec
	LastIndexedSlot   prometheus.Gauge

	// RPC metrics
	RPCRequests         *prometheus.CounterVec
	RPCCallLatency      *prometheus.HistogramVec
	WSSubscriptions     prometheus.Gauge
	AirdropsRateLimited prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "escrow_lab"
	}

	return &Metrics{
		// Ledger metrics
		TransactionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_processed_total",
			Help:      "Total number of executed transactions by status",
		}, []string{"status"}),
		ComputeUnitsConsumed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "compute_units_consumed",
			Help:      "Compute units consumed per transaction",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 200000, 400000, 1400000},
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fees_collected_lamports_total",
			Help:      "Total transaction fees charged in lamports",
		}),
		InstructionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "instruction_errors_total",
			Help:      "Total number of failed transactions by error kind",
		}, []string{"error"}),
		AirdroppedLamports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "airdropped_lamports_total",
			Help:      "Total lamports credited by airdrops",
		}),
		CurrentSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "slot",
			Help:      "Current ledger slot",
		}),

		// Escrow metrics
		EscrowEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "events_total",
			Help:      "Total number of indexed escrow lifecycle events by kind",
		}, []string{"kind"}),
		EscrowVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "token_volume_total",
			Help:      "Total base units of mint A moved through escrows by kind",
		}, []string{"kind"}),

		// Indexer metrics
		IndexerBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "buffer_size",
			Help:      "Current number of buffered transaction records",
		}),
		RecordsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "records_stored_total",
			Help:      "Total number of records written by store",
		}, []string{"store"}),
		IndexerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Total number of indexer errors by stage",
		}, []string{"stage"}),
		LastIndexedSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_indexed_slot",
			Help:      "Highest slot flushed to storage",
		}),

		// RPC metrics
		RPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests by method and status",
		}, []string{"method", "status"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_subscriptions",
			Help:      "Number of active WebSocket log subscriptions",
		}),
		AirdropsRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "airdrops_rate_limited_total",
			Help:      "Total number of airdrop requests rejected by the rate limiter",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransaction records an executed transaction.
func RecordTransaction(success bool, computeUnits, fee uint64, errKind string) {
	status := "success"
	if !success {
		status = "failed"
		DefaultMetrics.InstructionErrors.WithLabelValues(errKind).Inc()
	}
	DefaultMetrics.TransactionsProcessed.WithLabelValues(status).Inc()
	DefaultMetrics.ComputeUnitsConsumed.Observe(float64(computeUnits))
	DefaultMetrics.FeesCollected.Add(float64(fee))
}

// RecordAirdrop records lamports credited by an airdrop.
func RecordAirdrop(lamports uint64) {
	DefaultMetrics.AirdroppedLamports.Add(float64(lamports))
}

// SetSlot sets the current slot gauge.
func SetSlot(slot uint64) {
	DefaultMetrics.CurrentSlot.Set(float64(slot))
}

// RecordEscrowEvent records an indexed escrow event and its token amount.
func RecordEscrowEvent(kind string, amount uint64) {
	DefaultMetrics.EscrowEvents.WithLabelValues(kind).Inc()
	DefaultMetrics.EscrowVolume.WithLabelValues(kind).Add(float64(amount))
}

// SetIndexerBufferSize sets the indexer buffer gauge.
func SetIndexerBufferSize(size int) {
	DefaultMetrics.IndexerBufferSize.Set(float64(size))
}

// RecordStored records n records written to a store.
func RecordStored(store string, n int) {
	DefaultMetrics.RecordsStored.WithLabelValues(store).Add(float64(n))
}

// RecordIndexerError records an indexer failure at the given stage.
func RecordIndexerError(stage string) {
	DefaultMetrics.IndexerErrors.WithLabelValues(stage).Inc()
}

// SetLastIndexedSlot sets the last indexed slot gauge.
func SetLastIndexedSlot(slot uint64) {
	DefaultMetrics.LastIndexedSlot.Set(float64(slot))
}

// RecordRPCRequest records a JSON-RPC request outcome and latency.
func RecordRPCRequest(method string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	DefaultMetrics.RPCRequests.WithLabelValues(method, status).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// AddWSSubscriptions adjusts the active subscription gauge by delta.
func AddWSSubscriptions(delta int) {
	DefaultMetrics.WSSubscriptions.Add(float64(delta))
}

// RecordAirdropRateLimited records a rejected airdrop.
func RecordAirdropRateLimited() {
	DefaultMetrics.AirdropsRateLimited.Inc()
}

// RecordDBQuery records database query duration.
func RecordDBQuery(database, operation string, duration time.Duration) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordDBError records a database error.
func RecordDBError(database, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
}

package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var defaultHistogramBucketsSeconds = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

// Collectors are created up front so recording before Init is a no-op
// rather than a nil dereference; Init only registers and serves them.
var (
	once          sync.Once
	metricsRouter *chi.Mux

	// client requests are the ones sending to other service
	clientRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Histogram of outgoing client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"baseurl", "method", "path", "status"},
	)

	ticketClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_client_latency_seconds",
			Help:    "Histogram of ticket issuance client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	chainClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_client_latency_seconds",
			Help:    "Histogram of blockchain read client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	queueSendErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_error_count",
			Help: "The total number of reward notifications that could not be queued or published",
		},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	batchDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distribution_batch_duration_seconds",
			Help:    "Histogram of reward distribution batch durations in seconds.",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 3600},
		},
		[]string{"trigger", "status"},
	)

	positionsProcessedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distribution_positions_processed_total",
			Help: "Positions processed by reward distribution, split by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	ticketsDistributedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distribution_tickets_total",
			Help: "Open-entry tickets committed to the ledger, split by distribution type",
		},
		[]string{"distribution_type"},
	)

	batchRunningGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "distribution_batch_running",
			Help: "1 while a full distribution batch is running on this instance",
		},
	)

	anomaliesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "staking_anomalies_count",
			Help: "Anomalies found by the last detection run, split by kind",
		},
		[]string{"kind"},
	)

	verificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "position_verifications_total",
			Help: "On-chain position verifications, split by result",
		},
		[]string{"result"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics registers the Prometheus metrics.
func registerMetrics() {
	prometheus.MustRegister(
		clientRequestDurationHistogram,
		ticketClientLatency,
		chainClientLatency,
		queueSendErrorCounter,
		pollerDurationHistogram,
		batchDurationHistogram,
		positionsProcessedCounter,
		ticketsDistributedCounter,
		batchRunningGauge,
		anomaliesGauge,
		verificationCounter,
		dbLatency,
	)
}

func statusOf(failure bool) Outcome {
	if failure {
		return Error
	}
	return Success
}

func RecordTicketClientLatency(d time.Duration, method string, failure bool) {
	ticketClientLatency.WithLabelValues(method, statusOf(failure).String()).Observe(d.Seconds())
}

func RecordChainClientLatency(d time.Duration, method string, failure bool) {
	chainClientLatency.WithLabelValues(method, statusOf(failure).String()).Observe(d.Seconds())
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	dbLatency.WithLabelValues(method, statusOf(failure).String()).Observe(d.Seconds())
}

func RecordBatchDuration(d time.Duration, trigger string, failure bool) {
	batchDurationHistogram.WithLabelValues(trigger, statusOf(failure).String()).Observe(d.Seconds())
}

func RecordPositionProcessed(trigger, outcome string) {
	positionsProcessedCounter.WithLabelValues(trigger, outcome).Inc()
}

func RecordTicketsDistributed(distributionType string, tickets int64) {
	ticketsDistributedCounter.WithLabelValues(distributionType).Add(float64(tickets))
}

func SetBatchRunning(running bool) {
	if running {
		batchRunningGauge.Set(1)
		return
	}
	batchRunningGauge.Set(0)
}

func RecordAnomalies(kind string, count int) {
	anomaliesGauge.WithLabelValues(kind).Set(float64(count))
}

func RecordVerification(verified bool) {
	result := "unverified"
	if verified {
		result = "verified"
	}
	verificationCounter.WithLabelValues(result).Inc()
}

// StartClientRequestDurationTimer starts a timer to measure outgoing client request duration.
func StartClientRequestDurationTimer(baseUrl, method, path string) func(statusCode int) {
	startTime := time.Now()
	return func(statusCode int) {
		duration := time.Since(startTime).Seconds()
		clientRequestDurationHistogram.WithLabelValues(
			baseUrl,
			method,
			path,
			fmt.Sprintf("%d", statusCode),
		).Observe(duration)
	}
}

func RecordQueueSendError() {
	queueSendErrorCounter.Inc()
}

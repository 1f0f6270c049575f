package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bloom",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. Code is the JSON-RPC
// error code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics captures command throughput, payouts and subscriber counts of
// the content ledger.
type LedgerMetrics struct {
	commands    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	payouts     *prometheus.CounterVec
	eventHead   prometheus.Gauge
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// Ledger returns the singleton metrics registry for the content ledger.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "commands_total",
				Help:      "Count of applied ledger commands segmented by type and outcome.",
			}, []string{"command", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "command_duration_seconds",
				Help:      "Latency distribution for ledger commands including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"command"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "payouts_tokens_total",
				Help:      "Whole BLOOM paid out by claims segmented by principal kind.",
			}, []string{"kind"}),
			eventHead: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "event_head",
				Help:      "Sequence number of the newest committed event.",
			}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "subscribers",
				Help:      "Number of live event subscriptions.",
			}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "ledger",
				Name:      "subscribers_dropped_total",
				Help:      "Subscriptions closed because the consumer fell behind.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.commands,
			ledgerRegistry.latency,
			ledgerRegistry.payouts,
			ledgerRegistry.eventHead,
			ledgerRegistry.subscribers,
			ledgerRegistry.dropped,
		)
	})
	return ledgerRegistry
}

// ObserveCommand records a command outcome and its latency.
func (m *LedgerMetrics) ObserveCommand(command string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	command = strings.TrimSpace(command)
	if command == "" {
		command = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.latency.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordPayout adds a claim payout expressed in base units with the supplied
// number of decimals.
func (m *LedgerMetrics) RecordPayout(kind string, amount *big.Int, decimals int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.payouts.WithLabelValues(kind).Add(scaledFloat(amount, decimals))
}

func (m *LedgerMetrics) SetEventHead(seq uint64) {
	if m == nil {
		return
	}
	m.eventHead.Set(float64(seq))
}

func (m *LedgerMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *LedgerMetrics) RecordDroppedSubscriber() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func scaledFloat(value *big.Int, decimals int) float64 {
	if value == nil {
		return 0
	}
	f := new(big.Float).SetInt(value)
	if decimals > 0 {
		scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
		f.Quo(f, scale)
	}
	out, _ := f.Float64()
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return 0
	}
	return out
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// HTTP returns the registry for plain HTTP routes served by the node and the
// indexer API.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bloom",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by service, route and status.",
			}, []string{"service", "route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bloom",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"service", "route"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency)
	})
	return httpRegistry
}

func (m *httpMetrics) ObserveRequest(service, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, route, fmt.Sprintf("%d", status)).Inc()
	m.latency.WithLabelValues(service, route).Observe(duration.Seconds())
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics tracks the projection indexer's progress through the ledger
// event log.
type IndexerMetrics struct {
	applied      *prometheus.CounterVec
	cursor       prometheus.Gauge
	reconnects   prometheus.Counter
	cacheResults *prometheus.CounterVec
}

var (
	indexerOnce     sync.Once
	indexerRegistry *IndexerMetrics
)

func Indexer() *IndexerMetrics {
	indexerOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bloom_indexer_events_applied_total",
				Help: "Count of ledger events projected by type and outcome.",
			}, []string{"type", "outcome"}),
			cursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "bloom_indexer_cursor",
				Help: "Sequence of the last projected ledger event.",
			}),
			reconnects: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bloom_indexer_reconnects_total",
				Help: "Number of event stream reconnect attempts.",
			}),
			cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bloom_indexer_cache_lookups_total",
				Help: "Profile cache lookups by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(
			indexerRegistry.applied,
			indexerRegistry.cursor,
			indexerRegistry.reconnects,
			indexerRegistry.cacheResults,
		)
	})
	return indexerRegistry
}

func (m *IndexerMetrics) ObserveApplied(eventType string, err error) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.applied.WithLabelValues(eventType, outcome).Inc()
}

func (m *IndexerMetrics) SetCursor(seq uint64) {
	if m == nil {
		return
	}
	m.cursor.Set(float64(seq))
}

func (m *IndexerMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *IndexerMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheResults.WithLabelValues(result).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type WatcherMetrics struct {
	BlocksHandled       prometheus.Counter
	BlockFailures       prometheus.Counter
	ContractsProbed     prometheus.Counter
	TokensFound         prometheus.Counter
	Rotations           *prometheus.CounterVec
	ActiveEndpoint      *prometheus.GaugeVec
	BlockHandleDuration prometheus.Histogram
	SinkWriteFailures   prometheus.Counter
}

func NewWatcherMetrics() *WatcherMetrics {
	return &WatcherMetrics{
		BlocksHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_watcher_blocks_handled_total",
			Help: "Total number of blocks fully handled",
		}),
		BlockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_watcher_block_failures_total",
			Help: "Total number of blocks whose handling failed and caused a rotation",
		}),
		ContractsProbed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_watcher_contracts_probed_total",
			Help: "Total number of created contracts probed for the token interface",
		}),
		TokensFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_watcher_tokens_found_total",
			Help: "Total number of created contracts classified as tokens",
		}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_watcher_endpoint_rotations_total",
			Help: "Total number of rotations away from an endpoint",
		}, []string{"url"}),
		ActiveEndpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "token_watcher_active_endpoint",
			Help: "Indicates which RPC endpoint is currently active (1=active, 0=inactive)",
		}, []string{"url"}),
		BlockHandleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "token_watcher_block_handle_duration_seconds",
			Help:    "Time taken to fetch and classify one block in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		SinkWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_watcher_sink_write_failures_total",
			Help: "Total number of token records that could not be appended",
		}),
	}
}

// Register adds every collector to reg.
func (m *WatcherMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.BlocksHandled,
		m.BlockFailures,
		m.ContractsProbed,
		m.TokensFound,
		m.Rotations,
		m.ActiveEndpoint,
		m.BlockHandleDuration,
		m.SinkWriteFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetActive marks url as the only active endpoint among endpoints.
func (m *WatcherMetrics) SetActive(endpoints []string, url string) {
	for _, e := range endpoints {
		m.ActiveEndpoint.WithLabelValues(e).Set(0)
	}
	m.ActiveEndpoint.WithLabelValues(url).Set(1)
}

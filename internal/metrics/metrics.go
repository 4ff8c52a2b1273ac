package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_messages_sent_total",
			Help: "Total number of message send attempts.",
		},
		[]string{"outcome"},
	)

	MessageBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_message_bytes",
			Help:    "Audio sizes of stored messages.",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		},
	)

	RosesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_roses_sent_total",
			Help: "Total number of rose send attempts.",
		},
		[]string{"outcome"},
	)

	WateringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_waterings_total",
			Help: "Total number of watering attempts.",
		},
		[]string{"kind", "outcome"},
	)

	TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_tx_retries_total",
			Help: "Transactions re-run after a transient conflict.",
		},
	)
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

var registerOnce sync.Once

// MustRegister registers every collector with the default registry.
// Calling it more than once is a no-op.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesSentTotal,
			MessageBytes,
			RosesSentTotal,
			WateringsTotal,
			TxRetries,
		)
	})
}

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact submissions by outcome",
		},
		[]string{"outcome"},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of spreadsheet calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	LedgerPartitionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_partitions_created_total",
			Help: "Number of year partitions created on first write",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"path", "method", "status"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owner_notifications_total",
			Help: "Owner notifications by channel and result",
		},
		[]string{"channel", "result"},
	)
)

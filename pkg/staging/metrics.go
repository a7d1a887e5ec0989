package staging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cleanupFailures считает каталоги, которые не удалось удалить
	cleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkload_staging_cleanup_failures_total",
			Help: "Total number of staging directories that could not be removed",
		},
	)

	stagedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkload_staging_written_bytes_total",
			Help: "Bytes of CSV written to staging files before compression",
		},
		[]string{"table"},
	)
)

package bulk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// stagedRows считает строки, записанные в staging файлы
	stagedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkload_staged_rows_total",
			Help: "Total number of rows written to staging files",
		},
		[]string{"table"},
	)

	// commandsTotal считает bulk команды по исходу
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkload_commands_total",
			Help: "Total number of bulk commands by dialect, command and status",
		},
		[]string{"dialect", "command", "status"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkload_retries_total",
			Help: "Total number of bulk load retries",
		},
		[]string{"dialect"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkload_command_duration_seconds",
			Help:    "Duration of a single bulk command",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		},
		[]string{"dialect", "command"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkload_operation_duration_seconds",
			Help:    "Duration of loader operations including staging and cleanup",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		},
		[]string{"operation"},
	)
)

// Timed выполняет fn, пишет в лог время выполнения в миллисекундах
// и наблюдает его в гистограмме операций
func Timed(logger zerolog.Logger, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.Str("op", op).Int64("elapsed_ms", elapsed.Milliseconds()).Msg("bulk operation finished")
	return err
}

func observeCommand(dialect, command string, start time.Time, err error) {
	commandDuration.WithLabelValues(dialect, command).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	commandsTotal.WithLabelValues(dialect, command, status).Inc()
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/bulk"
	"github.com/ruslano69/bulkload/pkg/config"
)

var (
	configPath  string
	logLevel    string
	metricsAddr string

	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "bulkload",
	Short: "Bulk load CSV into database tables and unload tables to CSV",
	Long: `bulkload moves tables between CSV files and MySQL, PostgreSQL or SQLite
through the native bulk commands (LOAD DATA LOCAL INFILE, COPY) instead of
row-by-row inserts.

Data is staged in __tmp__to__<name>/ and __tmp_from__<name>/ next to the
executable (staging.base_dir in config) and removed after every run.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  startMetrics,
	PersistentPostRunE: stopMetrics,
}

// Execute запускает CLI
func Execute(ctx context.Context) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("bulkload failed")
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "bulkload.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
}

// loadConfig читает конфигурацию и настраивает логирование по ней
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if !cfg.Log.Console {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return cfg, nil
}

// env - подключение и настройки Loader для одной команды
type env struct {
	cfg  *config.Config
	db   adapters.Adapter
	opts bulk.Options
	done func() error
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := cfg.Connect(ctx)
	if err != nil {
		return nil, err
	}

	opts, done, err := cfg.LoaderOptions(ctx, &log.Logger)
	if err != nil {
		return nil, errors.Join(err, db.Close(ctx))
	}

	version, err := db.GetDatabaseVersion(ctx)
	if err == nil {
		log.Debug().Str("type", db.GetDatabaseType()).Str("version", version).Msg("connected")
	}

	return &env{cfg: cfg, db: db, opts: opts, done: done}, nil
}

func (r *env) Close(ctx context.Context) error {
	return errors.Join(r.done(), r.db.Close(ctx))
}

func startMetrics(cmd *cobra.Command, args []string) error {
	if metricsAddr == "" {
		return nil
	}

	metricsServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", metricsAddr).Msg("serving metrics")
	return nil
}

// metricsRouter отдает /metrics и /healthz
func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func stopMetrics(cmd *cobra.Command, args []string) error {
	if metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsServer.Shutdown(ctx)
}

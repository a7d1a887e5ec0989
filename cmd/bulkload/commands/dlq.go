package commands

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/bulkload/pkg/retry"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter file of failed bulk loads",
	Long: `Staged files whose bulk load failed are recorded in retry.dlq.file together
with the last error and the quarantine location. Entries older than
retry.dlq.retention are dropped every time the file is opened.`,
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print dead letter entries and totals by failure type",
	RunE: func(cmd *cobra.Command, args []string) error {
		dlq, err := openDLQ()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range dlq.Entries() {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\tattempts=%d\t%s\n",
				e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.Table, e.FailureType, e.Attempts, e.LastError)
			if e.Quarantine != "" {
				fmt.Fprintf(out, "\tquarantine: %s\n", e.Quarantine)
			}
		}

		stats := dlq.Stats()
		types := make([]string, 0, len(stats))
		for t := range stats {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Fprintf(out, "total: %d\n", dlq.Size())
		for _, t := range types {
			fmt.Fprintf(out, "  %s: %d\n", t, stats[t])
		}
		return nil
	},
}

var dlqCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop entries older than retry.dlq.retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		before, err := countDLQ(cfg.Retry.DLQ)
		if err != nil {
			return err
		}

		// NewDLQ применяет retention при открытии
		dlq, err := retry.NewDLQ(cfg.Retry.DLQ)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed: %d, kept: %d\n", before-dlq.Size(), dlq.Size())
		return nil
	},
}

var dlqRemoveCmd = &cobra.Command{
	Use:   "remove ID...",
	Short: "Remove entries by ID after the files were reloaded by hand",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dlq, err := openDLQ()
		if err != nil {
			return err
		}

		for _, id := range args {
			ok, err := dlq.Remove(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("dead letter entry %s not found", id)
			}
			log.Info().Str("id", id).Msg("dead letter entry removed")
		}
		return nil
	},
}

func openDLQ() (*retry.DLQ, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return retry.NewDLQ(cfg.Retry.DLQ)
}

// countDLQ считает записи файла без применения retention
func countDLQ(cfg retry.DLQConfig) (int, error) {
	cfg.RetentionPeriod = 0
	dlq, err := retry.NewDLQ(cfg)
	if err != nil {
		return 0, err
	}
	return dlq.Size(), nil
}

func init() {
	dlqCmd.AddCommand(dlqListCmd, dlqCleanupCmd, dlqRemoveCmd)
	rootCmd.AddCommand(dlqCmd)
}

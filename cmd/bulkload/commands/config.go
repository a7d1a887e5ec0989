package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/bulkload/pkg/config"
)

var configFlags struct {
	dbType string
	output string
	force  bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration",
	Example: `  bulkload config init --type mysql
  bulkload config init --type postgres --output pg.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch configFlags.dbType {
		case "mysql", "postgres", "postgresql", "sqlite":
		default:
			return fmt.Errorf("unsupported database type: %q (expected mysql, postgres or sqlite)", configFlags.dbType)
		}

		if _, err := os.Stat(configFlags.output); err == nil && !configFlags.force {
			return fmt.Errorf("%s already exists, use --force to overwrite", configFlags.output)
		}

		if err := config.SaveConfig(configFlags.output, config.CreateSampleConfig(configFlags.dbType)); err != nil {
			return err
		}
		log.Info().Str("file", configFlags.output).Str("type", configFlags.dbType).Msg("sample config written")
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", configPath, cfg.Database.Type)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configFlags.dbType, "type", "mysql", "database type: mysql, postgres, sqlite")
	configInitCmd.Flags().StringVarP(&configFlags.output, "output", "o", "bulkload.yaml", "file to write")
	configInitCmd.Flags().BoolVar(&configFlags.force, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// Command syncordian drives a replicated line-document convergence run
// from an edit trace and reports on the result.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/syncordian/syncordian/pkg/config"
	"github.com/syncordian/syncordian/pkg/observability/logging"
)

func main() {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "syncordian",
		Short: "Replay and inspect Syncordian convergence runs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logging.Init(cfg.LogLevel)
			cmd.SetContext(config.WithContext(cmd.Context(), cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a syncordian config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newReplayCmd(), newStatusCmd(), newKeygenCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/config"
	"gwi.com/analyst-assistant/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "analyst-assistant",
	Short:         "Data Analyst AI Assistant",
	Long:          "A browser chat assistant for Excel, SQL and data analysis questions.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, useraddCmd, exportLogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadTools prepares config and logger for the store-only commands.
func loadTools() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadForTools()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

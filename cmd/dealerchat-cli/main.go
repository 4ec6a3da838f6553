// Package main provides the dealer chat admin CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/floorservicemsk/dealerchat/internal/config"
	"github.com/floorservicemsk/dealerchat/internal/observability"
	"github.com/rs/zerolog"
)

var (
	cfgFile    string
	outputJSON bool
	demoMode   bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dealerchat-cli",
	Short: "Dealer chat CLI for questions, routing inspection and queue stats",
	Long: `Dealer chat CLI runs the full chat pipeline locally.

Use this tool to:
- Ask a question through the full pipeline (ask)
- Inspect how a message would be routed (route)
- Show request queue statistics (stats)

With --demo the catalog and knowledge base are filled with sample data,
so no external feed is needed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       "warn",
			Format:      logFormat,
			ServiceName: "dealerchat-cli",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "use built-in demo catalog and knowledge base")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(statsCmd)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...interface{}) {
	if outputJSON {
		return
	}
	color.New(color.FgCyan).Printf("ℹ %s\n", fmt.Sprintf(format, args...))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

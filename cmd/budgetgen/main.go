package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"budgetsense/internal/cli"
)

var (
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "budgetgen",
		Short: "Synthetic ministry budget corpus tooling",
		Long: `budgetgen generates reproducible synthetic budget allocation corpora,
summarizes them, persists the label encoders used by the prediction server
and explains the deviation between a predicted and an expected allocation.`,
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("tables", "", "TOML file overriding the category tables")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(encodersCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			level = env
		}
	}
	cli.SetupLogger(level)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "budgetgen", version)
		},
	}
}

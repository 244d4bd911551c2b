package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"budgetsense/internal/cli"
	"budgetsense/internal/generator"
)

func summaryCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a corpus per ministry and per priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", in, err)
				}
				defer f.Close()
				r = f
			}

			records, warnings, err := generator.ReadCorpus(r)
			if err != nil {
				return fmt.Errorf("read corpus: %w", err)
			}
			for _, w := range warnings {
				slog.Warn("Skipped corpus row", "reason", w)
			}

			return cli.RenderSummary(cmd.OutOrStdout(), generator.Summarize(records))
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "budget_allocation.csv", "corpus file (- for stdin)")
	return cmd
}

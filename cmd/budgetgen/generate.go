package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"budgetsense/internal/cli"
	"budgetsense/internal/config"
	"budgetsense/internal/core"
	"budgetsense/internal/generator"
)

func generateCmd() *cobra.Command {
	var (
		rows    int
		seed    uint64
		workers int
		out     string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic budget corpus as CSV",
		Long: `Generate writes a synthetic corpus of ministry budget records. The same
seed, row count and tables always produce the same file, whatever the
number of workers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := loadTables(cmd)
			if err != nil {
				return err
			}
			if rows < 0 {
				return fmt.Errorf("--rows must not be negative, got %d", rows)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			buf := bufio.NewWriter(w)
			csvw := generator.NewWriter(buf)
			if err := csvw.WriteHeader(); err != nil {
				return err
			}

			var bar interface{ Add(int) error }
			if !quiet && out != "" && out != "-" {
				bar = cli.NewProgressBar(cmd.ErrOrStderr(), rows, "Generating records...")
			}

			corpus := generator.Corpus{Tables: tables, Seed: seed, Rows: rows}
			start := time.Now()
			err = corpus.Build(cmd.Context(), workers, func(chunk []core.BudgetRecord) error {
				if err := csvw.Write(chunk...); err != nil {
					return err
				}
				if bar != nil {
					if err := bar.Add(len(chunk)); err != nil {
						slog.Warn("Failed to update progress bar", "error", err)
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("generate corpus: %w", err)
			}
			if err := csvw.Flush(); err != nil {
				return err
			}
			if err := buf.Flush(); err != nil {
				return fmt.Errorf("write corpus: %w", err)
			}

			slog.Info("Corpus generated",
				"rows", rows,
				"seed", seed,
				"out", out,
				"duration", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 1000, "number of records to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel generators (0 = GOMAXPROCS)")
	cmd.Flags().StringVarP(&out, "out", "o", "budget_allocation.csv", "output file (- for stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

func loadTables(cmd *cobra.Command) (core.Tables, error) {
	path, err := cmd.Flags().GetString("tables")
	if err != nil {
		return core.Tables{}, err
	}
	if path == "" {
		path = os.Getenv("TABLES_PATH")
	}
	return config.LoadTables(path)
}

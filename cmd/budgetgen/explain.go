package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"budgetsense/internal/cli"
	"budgetsense/internal/core"
	"budgetsense/internal/model"
	"budgetsense/internal/reasoner"
)

func explainCmd() *cobra.Command {
	var (
		predicted float64
		expected  float64
		features  string
		priority  string
		devIndex  float64
		gdpImpact float64
		projects  int
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain the deviation between a predicted and an expected budget",
		Example: `  budgetgen explain --predicted 800 --expected 1000 --priority High --dev-index 0.2 --gdp-impact 0.5 --projects 50
  budgetgen explain --predicted 500 --expected 1000 --features '{"Priority_Level":"Low","Dev_Index":0.9}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := loadTables(cmd)
			if err != nil {
				return err
			}
			enc := model.NewEncoders(tables)

			raw := map[string]any{}
			if features != "" {
				if err := json.Unmarshal([]byte(features), &raw); err != nil {
					return fmt.Errorf("--features must be a JSON object: %w", err)
				}
			}
			flags := cmd.Flags()
			if flags.Changed("priority") {
				raw[core.ColPriorityLevel] = priority
			}
			if flags.Changed("dev-index") {
				raw[core.ColDevIndex] = devIndex
			}
			if flags.Changed("gdp-impact") {
				raw[core.ColGDPImpact] = gdpImpact
			}
			if flags.Changed("projects") {
				raw[core.ColProjectsCount] = float64(projects)
			}

			f := reasoner.FeaturesFromMap(raw, enc)
			reasons := reasoner.New(enc).Explain(f, predicted, expected)
			return cli.RenderReasons(cmd.OutOrStdout(), predicted, expected, reasons)
		},
	}

	cmd.Flags().Float64Var(&predicted, "predicted", 0, "predicted allocation")
	cmd.Flags().Float64Var(&expected, "expected", 0, "expected allocation")
	cmd.Flags().StringVar(&features, "features", "", "record features as a JSON object")
	cmd.Flags().StringVar(&priority, "priority", "", "priority level label")
	cmd.Flags().Float64Var(&devIndex, "dev-index", 1, "development index")
	cmd.Flags().Float64Var(&gdpImpact, "gdp-impact", 2, "GDP impact (%)")
	cmd.Flags().IntVar(&projects, "projects", 0, "number of projects")
	_ = cmd.MarkFlagRequired("predicted")
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}

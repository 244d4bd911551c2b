package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetsense/internal/model"
)

func encodersCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "Write the label encoders used by the prediction server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := loadTables(cmd)
			if err != nil {
				return err
			}
			if err := tables.Validate(); err != nil {
				return err
			}
			if err := model.NewEncoders(tables).Save(out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Encoders written to", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "encoders.json", "output file")
	return cmd
}

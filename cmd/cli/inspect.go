package main

import (
	"errors"
	"fmt"

	"github.com/limaJavier/timetabler/pkg/diagnostics"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/spf13/cobra"
)

func diagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Compare every resource's load with its capacity and report structural problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			state, err := app.source.Snapshot(app.ctx)
			if err != nil {
				return fmt.Errorf("cannot read snapshot: %w", err)
			}

			report := diagnostics.Analyze(state)
			for _, load := range report.Loads {
				if !all && !load.Overloaded() {
					continue
				}
				fmt.Printf("%-30s %3d / %3d\n", load.Name, load.Required, load.Capacity)
			}
			for _, finding := range report.Findings {
				marker := "warning"
				if finding.Blocking {
					marker = "blocking"
				}
				fmt.Printf("[%s] %v\n", marker, finding)
			}

			if report.Blocking() {
				return &exitError{code: exitInfeasible, err: errors.New("the snapshot cannot be scheduled")}
			}
			fmt.Println("No blocking findings")
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "List every resource, not only the overloaded ones")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the placement of the snapshot against every scheduling rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := app.source.Snapshot(app.ctx)
			if err != nil {
				return fmt.Errorf("cannot read snapshot: %w", err)
			}

			violations := model.Verify(state)
			for _, violation := range violations {
				fmt.Println(violation)
			}
			if len(violations) > 0 {
				return &exitError{code: exitViolations, err: fmt.Errorf("%d violations found", len(violations))}
			}
			fmt.Println("Well done!")
			return nil
		},
	}
}

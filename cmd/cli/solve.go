package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/limaJavier/timetabler/pkg/engine"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func rebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Build a complete timetable, relaxing quality penalties until one is found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return solve(cmd, engine.Rebuild)
		},
	}
	solveFlags(cmd)
	return cmd
}

func bestEffortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "best-effort",
		Short: "Place as many hours as possible, reporting the blocks left out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return solve(cmd, engine.BestEffort)
		},
	}
	solveFlags(cmd)
	return cmd
}

func solveFlags(cmd *cobra.Command) {
	cmd.Flags().String("retention", "", "Placements kept from the snapshot: clear-all, keep-placed, keep-manual, keep-locked or keep-current")
	cmd.Flags().Duration("timeout", 0, "Wall-clock budget of every attempt; the configured value is used if zero")
	cmd.Flags().String("opb", "", "Write the model of the first attempt in OPB format to this path and exit")
	cmd.Flags().Bool("json", false, "Print the per-class timetable as JSON")
}

func solve(cmd *cobra.Command, mode engine.Mode) error {
	retention, _ := cmd.Flags().GetString("retention")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	opbPath, _ := cmd.Flags().GetString("opb")
	asJson, _ := cmd.Flags().GetBool("json")

	if retention != "" {
		app.cfg.Solver.Retention = retention
	}
	if timeout > 0 {
		app.cfg.Solver.AttemptTimeout = timeout
	}

	options, err := app.cfg.Options(app.logger, engine.LogSink{Logger: app.logger})
	if err != nil {
		return err
	}

	state, err := app.source.Snapshot(app.ctx)
	if err != nil {
		return fmt.Errorf("cannot read snapshot: %w", err)
	}

	if opbPath != "" {
		instance := engine.RebuildModel(state, options, mode)
		if err := os.WriteFile(opbPath, []byte(instance.ToOPB()), 0666); err != nil {
			return fmt.Errorf("cannot write OPB file: %w", err)
		}
		fmt.Printf("Variables: %v\n", instance.Variables)
		fmt.Printf("Constraints: %v\n", len(instance.Constraints))
		return nil
	}

	var solver engine.RebuildSolver
	if mode == engine.BestEffort {
		solver = engine.NewBestEffortSolver(options)
	} else {
		solver = engine.NewRebuildSolver(options)
	}

	started := time.Now()
	result, err := solver.Solve(app.ctx, state)
	if err != nil {
		printFailure(err)
		return err
	}
	app.logger.Info("solve finished", zap.String("run", result.RunId), zap.Duration("elapsed", time.Since(started)))

	printStats(result.Stats)
	for _, unplaced := range result.Unplaced {
		fmt.Printf("Unplaced: block %d (class %d, %s, %dh)\n", unplaced.BlockId, unplaced.Class, unplaced.Lesson, unplaced.Duration)
	}
	if err := printTimetable(result.State, asJson); err != nil {
		return err
	}

	if err := commit(state, result.Placements); err != nil {
		return err
	}
	if len(result.Violations) > 0 {
		for _, violation := range result.Violations {
			fmt.Printf("Violation: %v\n", violation)
		}
		return &exitError{code: exitViolations, err: errors.New("the schedule keeps violations of pinned placements")}
	}
	return nil
}

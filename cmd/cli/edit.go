package main

import (
	"fmt"
	"strconv"

	"github.com/limaJavier/timetabler/pkg/engine"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <block_id> <day> <hour>",
		Short: "Move a block to a slot and repair the timetable around it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := parseEditRequest(args)
			if err != nil {
				return err
			}

			planner, _ := cmd.Flags().GetString("planner")
			scope, _ := cmd.Flags().GetString("scope")
			asJson, _ := cmd.Flags().GetBool("json")
			if planner != "" {
				app.cfg.Edit.Planner = planner
			}
			if scope != "" {
				app.cfg.Edit.Scope = scope
			}

			app.logger.Debug("edit command",
				zap.Uint64("block", request.Block),
				zap.Stringer("target", request.Target),
				zap.String("planner", app.cfg.Edit.Planner),
				zap.String("scope", app.cfg.Edit.Scope))

			editPlanner, err := app.cfg.Planner(app.logger, engine.LogSink{Logger: app.logger})
			if err != nil {
				return err
			}

			state, err := app.source.Snapshot(app.ctx)
			if err != nil {
				return fmt.Errorf("cannot read snapshot: %w", err)
			}

			result, err := editPlanner.Resolve(app.ctx, state, request)
			if err != nil {
				printFailure(err)
				return err
			}

			printStats(result.Stats)
			fmt.Printf("Movable units: %d\n", result.Movable)
			for _, change := range result.Changes {
				fmt.Printf("Moved: block %d %v -> %v\n", change.BlockId, change.From, change.To)
			}
			if err := printTimetable(result.State, asJson); err != nil {
				return err
			}
			return commit(state, result.Placements)
		},
	}

	cmd.Flags().String("planner", "", "Edit planner: resolver, greedy or fallback")
	cmd.Flags().String("scope", "", "Blocks the resolver may move: focused or free")
	cmd.Flags().Bool("json", false, "Print the per-class timetable as JSON")
	return cmd
}

func parseEditRequest(args []string) (engine.EditRequest, error) {
	block, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return engine.EditRequest{}, fmt.Errorf("block_id must be a number: %w", err)
	}
	day, err := strconv.Atoi(args[1])
	if err != nil {
		return engine.EditRequest{}, fmt.Errorf("day must be a number: %w", err)
	}
	hour, err := strconv.Atoi(args[2])
	if err != nil {
		return engine.EditRequest{}, fmt.Errorf("hour must be a number: %w", err)
	}
	return engine.EditRequest{Block: block, Target: model.Slot{Day: day, Hour: hour}}, nil
}

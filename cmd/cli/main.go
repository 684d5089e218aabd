package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/logging"
	"github.com/limaJavier/timetabler/internal/snapshot"
	"github.com/limaJavier/timetabler/pkg/engine"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes follow the SAT competition convention
const (
	exitSolved     = 10
	exitViolations = 15
	exitInfeasible = 20
)

// App holds the dependencies shared by every command
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	ctx    context.Context
	source model.SnapshotSource
}

var (
	configPath   string
	snapshotPath string
	outPath      string
	app          *App
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "timetabler",
		Short:         "Build and edit weekly school timetables",
		Long:          `Builds weekly school timetables from a JSON snapshot, repairs them after manual edits and explains why a snapshot cannot be scheduled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration; defaults to ./timetabler.yaml or ~/timetabler.yaml")
	rootCmd.PersistentFlags().StringVarP(&snapshotPath, "file", "f", "", "Path to the JSON snapshot")
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "Path where the updated snapshot is written; nothing is written if empty")
	_ = rootCmd.MarkPersistentFlagRequired("file")

	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(bestEffortCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(diagnoseCmd())
	rootCmd.AddCommand(verifyCmd())

	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func initApp(ctx context.Context) error {
	var err error
	app = &App{
		ctx:    ctx,
		source: snapshot.NewFileSource(snapshotPath),
	}

	if configPath != "" {
		app.cfg, err = config.LoadFromPath(configPath)
	} else {
		app.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.logger, err = logging.NewLogger(app.cfg.Logging.Level, app.cfg.Logging.Format, app.cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.logger.Debug("configuration loaded", zap.String("snapshot", snapshotPath))
	return nil
}

// commit writes the placements of a definitive result into the output snapshot
func commit(base *model.ScheduleState, placements []model.Committed) error {
	if outPath == "" {
		return nil
	}
	if err := snapshot.NewFileSink(outPath, base).Commit(app.ctx, placements); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	app.logger.Info("snapshot written", zap.String("path", outPath), zap.Int("placements", len(placements)))
	return nil
}

type exitError struct {
	code int
	err  error
}

func (err *exitError) Error() string {
	return err.err.Error()
}

func (err *exitError) Unwrap() error {
	return err.err
}

func exitCode(err error) int {
	if err == nil {
		return exitSolved
	}

	var coded *exitError
	if errors.As(err, &coded) {
		if coded.err != nil {
			fmt.Fprintln(os.Stderr, coded.err)
		}
		return coded.code
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	switch engine.KindOf(err) {
	case engine.StructuralInfeasibility, engine.SolverInfeasible:
		return exitInfeasible
	default:
		return 1
	}
}

// File: cmd/sweep.go
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/internal/observability"
	"github.com/uipilot/uipilot/internal/scenario"
)

// newSweepCmd creates the `sweep` command, running every leaf scenario. Each
// leaf's chain covers its ancestors, so the sweep exercises the whole project.
func newSweepCmd() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep <project.yaml>",
		Short: "Runs every leaf scenario of a project",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("run.parallelism", cmd.Flags().Lookup("parallelism")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			project, err := scenario.LoadProject(args[0])
			if err != nil {
				return err
			}

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			startedAt := time.Now().UTC()
			executor := scenario.NewExecutor(project, engine.sessionFactory(project), &consoleReporter{logger: logger}, logger)

			sweepErr := executor.Sweep(ctx, cfg.Run.Parallelism)

			var leafIDs []string
			for _, leaf := range project.Leaves() {
				leafIDs = append(leafIDs, leaf.ID)
			}
			if err := engine.finishRun(ctx, executor, project, leafIDs, startedAt); err != nil {
				logger.Error("Writing run artifacts failed", zap.Error(err))
			}
			if sweepErr != nil {
				return sweepErr
			}

			logger.Info("Sweep complete", zap.Int("leaves", len(leafIDs)))
			return nil
		},
	}

	sweepCmd.Flags().Int("parallelism", 1, "number of leaf chains to run concurrently")
	return sweepCmd
}

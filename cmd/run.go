// File: cmd/run.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/internal/observability"
	"github.com/uipilot/uipilot/internal/scenario"
)

// newRunCmd creates the `run` command, executing one scenario's chain.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <project.yaml> <scenario-id>",
		Short: "Runs one scenario, including its dependency chain",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
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
			scenarioID := args[1]
			if _, ok := project.Find(scenarioID); !ok {
				return fmt.Errorf("scenario %q not found in %s", scenarioID, args[0])
			}

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			startedAt := time.Now().UTC()
			executor := scenario.NewExecutor(project, engine.sessionFactory(project), &consoleReporter{logger: logger}, logger)

			runErr := executor.RunScenario(ctx, scenarioID)
			if err := engine.finishRun(ctx, executor, project, []string{scenarioID}, startedAt); err != nil {
				logger.Error("Writing run artifacts failed", zap.Error(err))
			}
			if runErr != nil {
				return runErr
			}

			logger.Info("Scenario achieved", zap.String("scenario", scenarioID))
			return nil
		},
	}

	runCmd.Flags().String("output", "", "output directory for run artifacts (overrides run.output_dir)")
	_ = viper.BindPFlag("run.output_dir", runCmd.Flags().Lookup("output"))

	return runCmd
}

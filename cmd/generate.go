// File: cmd/generate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/llmclient"
	"github.com/uipilot/uipilot/internal/observability"
	"github.com/uipilot/uipilot/internal/scenario"
)

// newGenerateCmd creates the `generate` command: it drafts candidate
// scenarios for an app description and prints them as project YAML. Existing
// goals from a project file are passed along so drafts do not repeat them.
func newGenerateCmd() *cobra.Command {
	var projectFile string

	generateCmd := &cobra.Command{
		Use:   "generate <app-description>",
		Short: "Drafts candidate scenarios from an app description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var existing []string
			if projectFile != "" {
				project, err := scenario.LoadProject(projectFile)
				if err != nil {
					return err
				}
				for _, s := range project.Scenarios {
					existing = append(existing, s.Goal)
				}
			}

			clients, err := llmclient.Factory(cfg.AI.Models, logger)
			if err != nil {
				return err
			}
			router, err := llmclient.NewRouter(clients, logger)
			if err != nil {
				return err
			}
			ai := llmclient.NewAI(router, logger)

			drafts, err := ai.GenerateScenarios(ctx, schemas.ScenarioGenRequest{
				AppDescription: args[0],
				ExistingGoals:  existing,
			})
			if err != nil {
				return err
			}

			var p scenario.Project
			for i, d := range drafts {
				p.Scenarios = append(p.Scenarios, scenario.Scenario{
					ID:           fmt.Sprintf("draft-%d", i+1),
					Goal:         d.Goal,
					DependencyID: d.DependencyID,
				})
			}
			out, err := yaml.Marshal(p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	generateCmd.Flags().StringVar(&projectFile, "project", "", "existing project file whose goals the drafts should avoid")
	return generateCmd
}

// File: internal/results/writer.go
package results

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/scenario"
)

// Writer persists run artifacts under one output directory:
//
//	<dir>/result.yaml          the execution result tree
//	<dir>/ai-exchanges/        one file per AI decision (request + response)
//	<dir>/screenshots/         step screenshots (written by the agents)
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter prepares the output directory.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	for _, sub := range []string{"", "ai-exchanges", "screenshots"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	return &Writer{dir: dir, logger: logger.Named("results")}, nil
}

// ScreenshotDir is where agents drop per-step screenshots.
func (w *Writer) ScreenshotDir() string {
	return filepath.Join(w.dir, "screenshots")
}

// WriteRun encodes the execution result tree as YAML.
func (w *Writer) WriteRun(run RunResult) error {
	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run result: %w", err)
	}
	path := filepath.Join(w.dir, "result.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run result: %w", err)
	}
	w.logger.Info("Run result written", zap.String("path", path))
	return nil
}

// WriteExchanges dumps the raw AI request/response of every step that talked
// to the model, one file per step.
func (w *Writer) WriteExchanges(scenarioID string, attempt int, steps []schemas.Step) error {
	for i, step := range steps {
		if step.AIRequest == "" && step.AIResponse == "" {
			continue
		}
		name := fmt.Sprintf("%s-attempt%02d-step%03d.txt", scenarioID, attempt, i+1)
		content := fmt.Sprintf("=== REQUEST ===\n%s\n\n=== RESPONSE ===\n%s\n", step.AIRequest, step.AIResponse)
		if err := os.WriteFile(filepath.Join(w.dir, "ai-exchanges", name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing AI exchange: %w", err)
		}
	}
	return nil
}

// BuildScenarioResult converts an executor's retry history into the result
// tree form.
func BuildScenarioResult(s scenario.Scenario, history [][]scenario.TaskAssignment) ScenarioResult {
	result := ScenarioResult{ScenarioID: s.ID, Goal: s.Goal}
	for attemptIdx, assignments := range history {
		attempt := AttemptResult{Attempt: attemptIdx + 1}
		for _, a := range assignments {
			attempt.Tasks = append(attempt.Tasks, TaskResult{
				ScenarioID: a.Task.ScenarioID,
				Goal:       a.Task.Goal,
				Status:     a.Result.Status,
				Error:      a.Result.Error,
				Steps:      a.Result.Steps,
			})
		}
		result.Attempts = append(result.Attempts, attempt)
	}
	if len(result.Attempts) > 0 {
		result.Achieved = result.Attempts[len(result.Attempts)-1].Succeeded()
	}
	return result
}

// File: internal/llmclient/ai.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

const defaultTemperature = 0.2

// AI implements schemas.Ai on top of the tier router: it turns engine
// requests into multimodal prompts and model replies back into typed
// results.
type AI struct {
	router *Router
	logger *zap.Logger
}

// NewAI wires the router into the engine-facing AI boundary.
func NewAI(router *Router, logger *zap.Logger) *AI {
	return &AI{router: router, logger: logger.Named("ai")}
}

func imageParts(data []byte) []ImagePart {
	if len(data) == 0 {
		return nil
	}
	mime := "image/png"
	if len(data) >= 2 && data[0] == 0xff && data[1] == 0xd8 {
		mime = "image/jpeg"
	}
	return []ImagePart{{MIMEType: mime, Data: data}}
}

// DecideNextActions asks the powerful tier for the next action(s) and records
// the full exchange on the returned step.
func (a *AI) DecideNextActions(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
	userPrompt := buildDecisionPrompt(req)

	raw, err := a.router.Pick(TierPowerful).GenerateResponse(ctx, GenerationRequest{
		SystemPrompt: decisionSystemPrompt,
		UserPrompt:   userPrompt,
		Images:       imageParts(req.ImageData),
		Options:      GenerationOptions{Temperature: defaultTemperature, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("decision generation failed: %w", err)
	}

	actions, thought, err := parseDecision(raw, req.AllowedActions)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Model decided next actions",
		zap.Int("step", req.StepNumber),
		zap.Int("actions", len(actions)),
		zap.String("thought", thought),
		zap.String("tools", describeTools(req.Tools)),
	)

	return &schemas.DecisionResult{
		Actions: actions,
		Step: schemas.Step{
			ID:             uuid.NewString(),
			Action:         &actions[0],
			ScreenshotPath: req.ScreenshotPath,
			AIRequest:      userPrompt,
			AIResponse:     raw,
			CacheKey:       req.CacheKey,
			Timestamp:      time.Now(),
		},
	}, nil
}

// AssertImages judges the screenshot against the run's image assertions on
// the powerful tier.
func (a *AI) AssertImages(ctx context.Context, req schemas.AssertionRequest) (*schemas.AssertionResult, error) {
	if len(req.Assertions) == 0 {
		return &schemas.AssertionResult{}, nil
	}

	raw, err := a.router.Pick(TierPowerful).GenerateResponse(ctx, GenerationRequest{
		SystemPrompt: assertionSystemPrompt,
		UserPrompt:   buildAssertionPrompt(req),
		Images:       imageParts(req.ImageData),
		Options:      GenerationOptions{Temperature: 0, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("assertion generation failed: %w", err)
	}

	verdicts, err := parseAssertions(raw, req.Assertions)
	if err != nil {
		return nil, err
	}
	return &schemas.AssertionResult{Verdicts: verdicts}, nil
}

// GenerateScenarios drafts scenarios on the fast tier.
func (a *AI) GenerateScenarios(ctx context.Context, req schemas.ScenarioGenRequest) ([]schemas.GeneratedScenario, error) {
	raw, err := a.router.Pick(TierFast).GenerateResponse(ctx, GenerationRequest{
		SystemPrompt: scenarioSystemPrompt,
		UserPrompt:   buildScenarioPrompt(req),
		Options:      GenerationOptions{Temperature: 0.7, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("scenario generation failed: %w", err)
	}
	return parseScenarios(raw)
}

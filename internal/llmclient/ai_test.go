package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

type fakeLLM struct {
	reply    string
	err      error
	requests []GenerationRequest
}

func (f *fakeLLM) GenerateResponse(_ context.Context, req GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func newTestAI(t *testing.T, llm LLMClient) *AI {
	t.Helper()
	router, err := NewRouter(map[Tier]LLMClient{TierPowerful: llm, TierFast: llm}, zap.NewNop())
	require.NoError(t, err)
	return NewAI(router, zap.NewNop())
}

func TestAI_DecideNextActions(t *testing.T) {
	llm := &fakeLLM{reply: `{"thought": "Tap login.", "actions": [{"type": "TAP", "element_index": 2, "rationale": "Opens the form."}]}`}
	ai := newTestAI(t, llm)

	req := schemas.DecisionRequest{
		Goal:           "log in",
		StepNumber:     1,
		MaxStep:        20,
		FormFactor:     schemas.FormFactorMobile,
		TreeText:       `[2] Button "Login" clickable`,
		ScreenshotPath: "/runs/s1.png",
		ImageData:      []byte{0x89, 'P', 'N', 'G'},
		AllowedActions: []schemas.ActionType{schemas.ActionTap},
		CacheKey:       "v1-uitree-x-context-y",
	}
	result, err := ai.DecideNextActions(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, schemas.ActionTap, result.Actions[0].Type)
	assert.Equal(t, 2, result.Actions[0].ElementIndex)

	assert.NotEmpty(t, result.Step.ID)
	assert.Same(t, &result.Actions[0], result.Step.Action)
	assert.Equal(t, "/runs/s1.png", result.Step.ScreenshotPath)
	assert.Equal(t, "v1-uitree-x-context-y", result.Step.CacheKey)
	assert.Equal(t, llm.reply, result.Step.AIResponse)
	assert.Contains(t, result.Step.AIRequest, "GOAL: log in")
	assert.Contains(t, result.Step.AIRequest, `[2] Button "Login" clickable`)

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0].Images, 1)
	assert.Equal(t, "image/png", llm.requests[0].Images[0].MIMEType)
	assert.True(t, llm.requests[0].Options.ForceJSONFormat)
}

func TestAI_DecideNextActions_ParseErrorPropagates(t *testing.T) {
	ai := newTestAI(t, &fakeLLM{reply: "I think you should tap the button."})

	_, err := ai.DecideNextActions(context.Background(), schemas.DecisionRequest{
		AllowedActions: []schemas.ActionType{schemas.ActionTap},
	})
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestAI_AssertImages(t *testing.T) {
	llm := &fakeLLM{reply: `{"verdicts": [{"prompt": "cart badge shows 1", "fulfilment": 95, "explanation": "Badge reads 1."}]}`}
	ai := newTestAI(t, llm)

	result, err := ai.AssertImages(context.Background(), schemas.AssertionRequest{
		ImageData:  []byte{0x89},
		Assertions: []schemas.ImageAssertion{{Prompt: "cart badge shows 1", RequiredFulfilment: 80}},
		History:    []schemas.AssertionVerdict{{Assertion: schemas.ImageAssertion{Prompt: "earlier"}, Fulfilment: 70}},
	})
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 1)
	assert.True(t, result.Verdicts[0].Passed)

	require.Len(t, llm.requests, 1)
	assert.Contains(t, llm.requests[0].UserPrompt, "EARLIER VERDICTS")
	assert.Contains(t, llm.requests[0].UserPrompt, "required fulfilment: 80")
}

func TestAI_AssertImages_NoAssertionsSkipsModel(t *testing.T) {
	llm := &fakeLLM{}
	ai := newTestAI(t, llm)

	result, err := ai.AssertImages(context.Background(), schemas.AssertionRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Verdicts)
	assert.Empty(t, llm.requests, "no assertions means no model call")
}

func TestAI_GenerateScenarios(t *testing.T) {
	llm := &fakeLLM{reply: `{"scenarios": [{"goal": "Browse the catalog"}]}`}
	ai := newTestAI(t, llm)

	scenarios, err := ai.GenerateScenarios(context.Background(), schemas.ScenarioGenRequest{
		AppDescription: "A shopping app",
		ExistingGoals:  []string{"Log in"},
	})
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "Browse the catalog", scenarios[0].Goal)
	assert.Contains(t, llm.requests[0].UserPrompt, "do not duplicate")
}

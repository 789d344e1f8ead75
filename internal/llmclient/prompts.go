// File: internal/llmclient/prompts.go
package llmclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uipilot/uipilot/api/schemas"
)

const decisionSystemPrompt = `You are a UI test agent driving a real application toward a goal.
You observe the current screen as a screenshot plus a numbered element tree.
Respond with a single JSON object and nothing else:
{"thought": "<your reasoning>", "actions": [{"type": "<ACTION>", "element_index": <int>, "value": "<string>", "direction": "<UP|DOWN|LEFT|RIGHT>", "rationale": "<one sentence>"}]}
Rules:
- Use only the allowed action types listed in the prompt.
- element_index must reference an index from the element tree.
- Emit GOAL_ACHIEVED alone once the goal is visibly complete.
- Emit FAILED alone when the goal is impossible from this state.
- Prefer one action per step; batch only trivially independent actions.`

const assertionSystemPrompt = `You are a visual QA judge. Given a screenshot and a list of assertions,
score how well the screen fulfils each assertion from 0 to 100.
Respond with a single JSON object and nothing else:
{"verdicts": [{"prompt": "<assertion text>", "fulfilment": <0-100>, "explanation": "<one sentence>"}]}
Return the verdicts in the same order as the assertions.`

const scenarioSystemPrompt = `You draft UI test scenarios for an application.
Respond with a single JSON object and nothing else:
{"scenarios": [{"goal": "<natural language goal>", "dependencyId": "<optional id of a scenario this builds on>"}]}`

func buildDecisionPrompt(req schemas.DecisionRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "GOAL: %s\n", req.Goal)
	fmt.Fprintf(&b, "STEP: %d of %d\n", req.StepNumber, req.MaxStep)
	fmt.Fprintf(&b, "FORM FACTOR: %s\n\n", req.FormFactor)

	b.WriteString("ALLOWED ACTIONS: ")
	for i, a := range req.AllowedActions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(a))
	}
	b.WriteString("\n\n")

	if len(req.Tools) > 0 {
		b.WriteString("AVAILABLE TOOLS (use type EXECUTE_TOOL with value = tool name):\n")
		for _, tool := range req.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		}
		b.WriteString("\n")
	}

	if req.ContextText != "" {
		fmt.Fprintf(&b, "PREVIOUS STEPS:\n%s\n\n", req.ContextText)
	}

	fmt.Fprintf(&b, "ELEMENT TREE:\n%s\n", req.TreeText)

	if req.FocusedText != "" {
		fmt.Fprintf(&b, "\nFOCUSED SUBTREE:\n%s\n", req.FocusedText)
	}

	b.WriteString("\nDecide the next action(s).")
	return b.String()
}

func buildAssertionPrompt(req schemas.AssertionRequest) string {
	var b strings.Builder

	b.WriteString("ASSERTIONS:\n")
	for i, a := range req.Assertions {
		fmt.Fprintf(&b, "%d. %s (required fulfilment: %d)\n", i+1, a.Prompt, a.Threshold())
	}

	if len(req.History) > 0 {
		b.WriteString("\nEARLIER VERDICTS THIS RUN:\n")
		for _, v := range req.History {
			fmt.Fprintf(&b, "- %q scored %d (%s)\n", v.Assertion.Prompt, v.Fulfilment, v.Explanation)
		}
	}

	b.WriteString("\nJudge the attached screenshot against each assertion.")
	return b.String()
}

func buildScenarioPrompt(req schemas.ScenarioGenRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "APPLICATION:\n%s\n", req.AppDescription)

	if len(req.ExistingGoals) > 0 {
		b.WriteString("\nEXISTING SCENARIO GOALS (do not duplicate):\n")
		for _, g := range req.ExistingGoals {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	b.WriteString("\nDraft new scenarios covering the main user journeys.")
	return b.String()
}

// describeTools renders tool descriptors for logging and step records.
func describeTools(tools []schemas.ToolDescriptor) string {
	if len(tools) == 0 {
		return ""
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	out, _ := json.Marshal(names)
	return string(out)
}

// File: internal/llmclient/parse.go
package llmclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uipilot/uipilot/api/schemas"
)

// ParseError marks a model reply the engine could not interpret. The raw
// reply travels with the error so a failed step records what the model
// actually said.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// stripFences removes a markdown code fence the model sometimes wraps JSON
// in despite the JSON response mime type.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type decisionReply struct {
	Thought string `json:"thought"`
	Actions []struct {
		Type         string `json:"type"`
		ElementIndex int    `json:"element_index"`
		Value        string `json:"value"`
		Direction    string `json:"direction"`
		Rationale    string `json:"rationale"`
	} `json:"actions"`
}

// parseDecision interprets a decision reply, rejecting action types outside
// the allowed set.
func parseDecision(raw string, allowed []schemas.ActionType) ([]schemas.Action, string, error) {
	var reply decisionReply
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return nil, "", &ParseError{Raw: raw, Err: err}
	}
	if len(reply.Actions) == 0 {
		return nil, "", &ParseError{Raw: raw, Err: fmt.Errorf("reply contains no actions")}
	}

	allowedSet := make(map[schemas.ActionType]bool, len(allowed)+2)
	for _, a := range allowed {
		allowedSet[a] = true
	}
	// Terminal verdicts are always legal regardless of form factor.
	allowedSet[schemas.ActionGoalAchieved] = true
	allowedSet[schemas.ActionFailed] = true

	now := time.Now()
	actions := make([]schemas.Action, 0, len(reply.Actions))
	for _, a := range reply.Actions {
		actionType := schemas.ActionType(strings.ToUpper(strings.TrimSpace(a.Type)))
		if !allowedSet[actionType] {
			return nil, "", &ParseError{Raw: raw, Err: fmt.Errorf("action type %q is not allowed", a.Type)}
		}
		actions = append(actions, schemas.Action{
			Type:         actionType,
			ElementIndex: a.ElementIndex,
			Value:        a.Value,
			Direction:    strings.ToUpper(strings.TrimSpace(a.Direction)),
			Thought:      reply.Thought,
			Rationale:    a.Rationale,
			Timestamp:    now,
		})
	}
	return actions, reply.Thought, nil
}

type assertionReply struct {
	Verdicts []struct {
		Prompt      string `json:"prompt"`
		Fulfilment  int    `json:"fulfilment"`
		Explanation string `json:"explanation"`
	} `json:"verdicts"`
}

// parseAssertions interprets an assertion reply, pairing verdicts with the
// requested assertions by position and deriving pass/fail from each
// assertion's required fulfilment.
func parseAssertions(raw string, assertions []schemas.ImageAssertion) ([]schemas.AssertionVerdict, error) {
	var reply assertionReply
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if len(reply.Verdicts) != len(assertions) {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf(
			"reply has %d verdicts for %d assertions", len(reply.Verdicts), len(assertions))}
	}

	verdicts := make([]schemas.AssertionVerdict, len(assertions))
	for i, v := range reply.Verdicts {
		if v.Fulfilment < 0 || v.Fulfilment > 100 {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("fulfilment %d out of range", v.Fulfilment)}
		}
		verdicts[i] = schemas.AssertionVerdict{
			Assertion:   assertions[i],
			Passed:      v.Fulfilment >= assertions[i].Threshold(),
			Fulfilment:  v.Fulfilment,
			Explanation: v.Explanation,
		}
	}
	return verdicts, nil
}

type scenarioReply struct {
	Scenarios []schemas.GeneratedScenario `json:"scenarios"`
}

func parseScenarios(raw string) ([]schemas.GeneratedScenario, error) {
	var reply scenarioReply
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if len(reply.Scenarios) == 0 {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("reply contains no scenarios")}
	}
	out := make([]schemas.GeneratedScenario, 0, len(reply.Scenarios))
	for _, s := range reply.Scenarios {
		if strings.TrimSpace(s.Goal) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("every drafted scenario had an empty goal")}
	}
	return out, nil
}

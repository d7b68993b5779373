package toolloop

import (
	"testing"

	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(id, name string, res tools.Result) tools.Outcome {
	return tools.Outcome{Call: tools.ToolCallRequest{ID: id, Name: name}, Result: res}
}

func TestMerge_AppendsTextInRoundOrder(t *testing.T) {
	s := State{}
	for _, frag := range []string{"a", "", "b", "a"} {
		s = Merge(s, RoundOutcome{Text: frag})
	}
	assert.Equal(t, "aba", s.Text)
	assert.Equal(t, 4, s.Rounds)
}

func TestMerge_FollowUpDoesNotCountAsRound(t *testing.T) {
	s := Merge(State{}, RoundOutcome{Text: "x"})
	s = Merge(s, RoundOutcome{Text: "y", FollowUp: true})
	assert.Equal(t, 1, s.Rounds)
	assert.Equal(t, "xy", s.Text)
}

func TestMerge_FirstSuggestionPerKindAcrossRounds(t *testing.T) {
	s := Merge(State{}, RoundOutcome{Outcomes: []tools.Outcome{
		outcome("1", "suggest_food_log", tools.DeferredSuggestion{Kind: "food_log", Payload: "apple"}),
	}})
	s = Merge(s, RoundOutcome{Outcomes: []tools.Outcome{
		outcome("2", "suggest_food_log", tools.DeferredSuggestion{Kind: "food_log", Payload: "pear"}),
		outcome("3", "update_user_plan", tools.DeferredSuggestion{Kind: "plan_update", Payload: "plan"}),
	}})

	require.Len(t, s.Suggestions, 2)
	food, ok := s.Suggestion("food_log")
	require.True(t, ok)
	assert.Equal(t, "apple", food.Payload)
	assert.Equal(t, 1, food.Round)
	plan, ok := s.Suggestion("plan_update")
	require.True(t, ok)
	assert.Equal(t, 2, plan.Round)
	assert.Equal(t, []string{"suggest_food_log", "suggest_food_log", "update_user_plan"}, s.ToolsInvoked)
}

func TestMerge_RecordsSideEffectsOnly(t *testing.T) {
	s := Merge(State{}, RoundOutcome{Outcomes: []tools.Outcome{
		outcome("1", "remember_fact", tools.SideEffectRecord{Kind: "fact_remembered", Value: 1}),
		outcome("2", "query_food_log", tools.DataResult{Payload: map[string]any{}}),
		outcome("3", "forget_fact", tools.NoAction{}),
		outcome("4", "nope", tools.ArgumentError{Field: "name", Reason: "unknown tool"}),
		outcome("5", "remember_fact", tools.SideEffectRecord{Kind: "fact_remembered", Value: 2}),
	}})
	require.Len(t, s.SideEffects, 2)
	assert.Equal(t, 1, s.SideEffects[0].Value)
	assert.Equal(t, "5", s.SideEffects[1].CallID)
	assert.False(t, s.HasSuggestion())
	assert.Len(t, s.ToolsInvoked, 5)
}

func TestMerge_DoesNotModifyPrior(t *testing.T) {
	first := Merge(State{}, RoundOutcome{Text: "a", Outcomes: []tools.Outcome{
		outcome("1", "remember_fact", tools.SideEffectRecord{Kind: "fact_remembered"}),
	}})
	// spare capacity would expose an in-place append
	prior := first
	prior.SideEffects = make([]SideEffect, 1, 4)
	copy(prior.SideEffects, first.SideEffects)

	next := Merge(prior, RoundOutcome{Text: "b", Outcomes: []tools.Outcome{
		outcome("2", "remember_fact", tools.SideEffectRecord{Kind: "fact_remembered"}),
		outcome("3", "suggest_food_log", tools.DeferredSuggestion{Kind: "food_log"}),
	}})

	assert.Equal(t, "a", prior.Text)
	assert.Equal(t, 1, prior.Rounds)
	assert.Empty(t, prior.Suggestions)
	assert.Equal(t, SideEffect{}, prior.SideEffects[:2][1])
	assert.Len(t, next.SideEffects, 2)
	assert.Equal(t, "ab", next.Text)
	assert.Equal(t, 2, next.Rounds)
}

func TestResponseParts_AnswersEveryCallInOrder(t *testing.T) {
	outcomes := []tools.Outcome{
		outcome("1", "a", tools.DataResult{Payload: map[string]any{"n": 1}}),
		outcome("2", "b", tools.SideEffectRecord{Kind: "fact_remembered"}),
		outcome("3", "c", tools.ArgumentError{Field: "x", Reason: "bad"}),
		outcome("4", "d", tools.DataResult{Payload: "plain"}),
		outcome("5", "e", tools.DeferredSuggestion{Kind: "food_log"}),
		outcome("6", "f", tools.NoAction{}),
	}
	parts := responseParts(outcomes)
	require.Len(t, parts, len(outcomes))
	for i, p := range parts {
		assert.Equal(t, outcomes[i].Call.ID, p.ToolResult.ID)
		assert.Equal(t, outcomes[i].Call.Name, p.ToolResult.Name)
	}
	assert.Equal(t, map[string]any{"n": 1}, parts[0].ToolResult.Payload)
	assert.Equal(t, map[string]any{"status": "applied", "kind": "fact_remembered"}, parts[1].ToolResult.Payload)
	assert.Equal(t, "bad", parts[2].ToolResult.Payload["reason"])
	assert.Equal(t, map[string]any{"result": "plain"}, parts[3].ToolResult.Payload)
	assert.Equal(t, map[string]any{"status": "awaiting_user_confirmation", "kind": "food_log"}, parts[4].ToolResult.Payload)
	assert.Equal(t, map[string]any{"status": "no_action"}, parts[5].ToolResult.Payload)

	assert.True(t, hasFeedback(outcomes))
	assert.False(t, hasFeedback(outcomes[4:]))
	assert.False(t, hasFeedback(nil))
}

func TestLoopConfig(t *testing.T) {
	assert.Equal(t, 5, DefaultLoopConfig().MaxRounds)
	assert.True(t, DefaultLoopConfig().SuggestionFollowUp)
	assert.Equal(t, DefaultMaxRounds, LoopConfig{}.maxRounds())
	assert.Equal(t, 3, DefaultLoopConfig().WithMaxRounds(3).maxRounds())
}

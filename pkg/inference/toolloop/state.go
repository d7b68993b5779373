package toolloop

import (
	"github.com/go-go-golems/trai/pkg/inference/tools"
)

// Suggestion is a deferred suggestion recorded during a run, with the call
// that produced it.
type Suggestion struct {
	Kind    tools.SuggestionKind `json:"kind" yaml:"kind"`
	Payload any                  `json:"payload" yaml:"payload"`
	Tool    string               `json:"tool" yaml:"tool"`
	CallID  string               `json:"call_id" yaml:"call_id"`
	Round   int                  `json:"round" yaml:"round"`
}

// SideEffect is an already applied effect recorded during a run.
type SideEffect struct {
	Kind   string `json:"kind" yaml:"kind"`
	Value  any    `json:"value" yaml:"value"`
	Tool   string `json:"tool" yaml:"tool"`
	CallID string `json:"call_id" yaml:"call_id"`
	Round  int    `json:"round" yaml:"round"`
}

// State is what a run has accumulated so far. Only the loop goroutine
// produces new states, and always through Merge.
type State struct {
	Text         string       `json:"text"`
	Suggestions  []Suggestion `json:"suggestions,omitempty"`
	SideEffects  []SideEffect `json:"side_effects,omitempty"`
	ToolsInvoked []string     `json:"tools_invoked,omitempty"`
	Rounds       int          `json:"rounds"`
}

// RoundOutcome is the result of one backend round: the text it streamed and
// the dispatched calls in call order.
type RoundOutcome struct {
	Text     string
	Outcomes []tools.Outcome
	// FollowUp marks the suggestion follow-up round. Its text is appended but
	// it does not advance the round counter.
	FollowUp bool
}

// Merge folds one round into prior and returns the new state. prior is not
// modified. Text is appended verbatim, the first suggestion of each kind
// wins, side effects and invoked tools keep call order.
func Merge(prior State, r RoundOutcome) State {
	next := State{
		Text:         prior.Text + r.Text,
		Suggestions:  append([]Suggestion(nil), prior.Suggestions...),
		SideEffects:  append([]SideEffect(nil), prior.SideEffects...),
		ToolsInvoked: append([]string(nil), prior.ToolsInvoked...),
		Rounds:       prior.Rounds,
	}
	if !r.FollowUp {
		next.Rounds++
	}

	for _, o := range r.Outcomes {
		next.ToolsInvoked = append(next.ToolsInvoked, o.Call.Name)
		switch res := o.Result.(type) {
		case tools.DeferredSuggestion:
			if _, ok := next.Suggestion(res.Kind); ok {
				continue
			}
			next.Suggestions = append(next.Suggestions, Suggestion{
				Kind:    res.Kind,
				Payload: res.Payload,
				Tool:    o.Call.Name,
				CallID:  o.Call.ID,
				Round:   next.Rounds,
			})
		case tools.SideEffectRecord:
			next.SideEffects = append(next.SideEffects, SideEffect{
				Kind:   res.Kind,
				Value:  res.Value,
				Tool:   o.Call.Name,
				CallID: o.Call.ID,
				Round:  next.Rounds,
			})
		}
	}
	return next
}

// Suggestion returns the recorded suggestion of the given kind.
func (s State) Suggestion(kind tools.SuggestionKind) (Suggestion, bool) {
	for _, sg := range s.Suggestions {
		if sg.Kind == kind {
			return sg, true
		}
	}
	return Suggestion{}, false
}

func (s State) HasSuggestion() bool {
	return len(s.Suggestions) > 0
}

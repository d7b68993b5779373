package tools

import (
	"time"

	"github.com/rs/zerolog"
)

// Result is the outcome of dispatching one tool call. It is one of
// DataResult, DeferredSuggestion, SideEffectRecord, NoAction or ArgumentError.
type Result interface {
	isResult()
	// Feedback returns the payload reported back to the backend, if any.
	Feedback() (map[string]any, bool)
}

// DataResult is plain data to report back to the backend. Handler failures are
// turned into a DataResult carrying an error payload.
type DataResult struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// SuggestionKind identifies a class of deferred suggestion. At most one
// suggestion per kind survives a run.
type SuggestionKind string

// DeferredSuggestion is an action that must be confirmed by a human before it
// takes effect. Recording one stops automatic chaining for the rest of the run.
type DeferredSuggestion struct {
	Kind    SuggestionKind `json:"kind"`
	Payload any            `json:"payload"`
}

// SideEffectRecord is an already-applied, non-blocking effect surfaced for the UI.
type SideEffectRecord struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// NoAction means the tool deliberately produced nothing actionable.
type NoAction struct{}

// ArgumentError reports a validation failure. It is a regular outcome that is
// fed back to the backend, never returned as a Go error.
type ArgumentError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (DataResult) isResult()         {}
func (DeferredSuggestion) isResult() {}
func (SideEffectRecord) isResult()   {}
func (NoAction) isResult()           {}
func (ArgumentError) isResult()      {}

func (r DataResult) Feedback() (map[string]any, bool) {
	return normalizePayload(r.Payload), true
}

func (r DeferredSuggestion) Feedback() (map[string]any, bool) { return nil, false }
func (r SideEffectRecord) Feedback() (map[string]any, bool)   { return nil, false }
func (r NoAction) Feedback() (map[string]any, bool)           { return nil, false }

func (r ArgumentError) Feedback() (map[string]any, bool) {
	return map[string]any{
		"error":  "invalid_arguments",
		"field":  r.Field,
		"reason": r.Reason,
	}, true
}

// NewErrorResult is the DataResult produced when a handler fails.
func NewErrorResult(name string, err error) DataResult {
	return DataResult{
		Name: name,
		Payload: map[string]any{
			"error": err.Error(),
		},
	}
}

func normalizePayload(payload any) map[string]any {
	switch v := payload.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	default:
		return map[string]any{"result": v}
	}
}

// Outcome pairs a dispatched call with its result.
type Outcome struct {
	Call     ToolCallRequest `json:"call"`
	Result   Result          `json:"result"`
	Duration time.Duration   `json:"duration"`
}

// ResultType returns a short label for logging and metrics.
func ResultType(r Result) string {
	switch r.(type) {
	case DataResult, *DataResult:
		return "data"
	case DeferredSuggestion, *DeferredSuggestion:
		return "suggestion"
	case SideEffectRecord, *SideEffectRecord:
		return "side_effect"
	case NoAction, *NoAction:
		return "no_action"
	case ArgumentError, *ArgumentError:
		return "argument_error"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalZerologObject(e *zerolog.Event) {
	e.Str("tool", o.Call.Name)
	e.Str("call_id", o.Call.ID)
	e.Str("result", ResultType(o.Result))
	e.Dur("duration", o.Duration)
	if ae, ok := o.Result.(ArgumentError); ok {
		e.Str("field", ae.Field).Str("reason", ae.Reason)
	}
}

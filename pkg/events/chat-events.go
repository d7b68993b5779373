package events

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart marks the beginning of a run.
	EventTypeStart             EventType = "start"
	EventTypeFinal             EventType = "final"
	EventTypePartialCompletion EventType = "partial"

	// Model requested a tool call (decoded from the backend stream)
	EventTypeToolCall EventType = "tool-call"

	// Execution-phase events (tools are dispatched locally)
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"

	// Outcomes surfaced to the UI
	EventTypeSuggestion EventType = "suggestion"
	EventTypeSideEffect EventType = "side-effect"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// set when the event was deserialized from JSON (see NewEventFromJson)
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// SetPayload stores the raw JSON payload on the event implementation.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

var _ Event = &EventPartialCompletionStart{}

// EventInterrupt is published when a run is cancelled. Text holds whatever was
// accumulated up to that point.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventInterrupt{}

type EventFinal struct {
	EventImpl
	Text          string   `json:"text"`
	ToolsInvoked  []string `json:"tools_invoked,omitempty"`
	Rounds        int      `json:"rounds"`
	ReachedCap    bool     `json:"reached_cap,omitempty"`
	HasSuggestion bool     `json:"has_suggestion,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{Type_: EventTypeToolCall, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

var _ Event = &EventToolCall{}

// ToolResult is the rendered outcome of one dispatched call. Kind is the
// result category (data, suggestion, side_effect, no_action, argument_error).
type ToolResult struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
}

// EventToolCallExecute captures the intent to execute a tool locally
type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: EventImpl{Type_: EventTypeToolCallExecute, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

var _ Event = &EventToolCallExecute{}

// EventToolCallExecutionResult captures the result of executing a tool locally
type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

var _ Event = &EventToolCallExecutionResult{}

// EventSuggestion is published when a deferred suggestion is recorded. Only the
// first suggestion of each kind in a run is published.
type EventSuggestion struct {
	EventImpl
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func NewSuggestionEvent(metadata EventMetadata, kind string, payload any) *EventSuggestion {
	return &EventSuggestion{
		EventImpl: EventImpl{Type_: EventTypeSuggestion, Metadata_: metadata},
		Kind:      kind,
		Payload:   payload,
	}
}

var _ Event = &EventSuggestion{}

type EventSideEffect struct {
	EventImpl
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func NewSideEffectEvent(metadata EventMetadata, kind string, value any) *EventSideEffect {
	return &EventSideEffect{
		EventImpl: EventImpl{Type_: EventTypeSideEffect, Metadata_: metadata},
		Kind:      kind,
		Value:     value,
	}
}

var _ Event = &EventSideEffect{}

// EventPartialCompletion is a streamed text fragment. Completion is the text of
// the whole run so far, including earlier rounds.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	if dec := lookupDecoder(string(hdr.Type)); dec != nil {
		ev, err := dec(b)
		if err != nil {
			return nil, err
		}
		if setter, ok := ev.(interface{ SetPayload([]byte) }); ok {
			setter.SetPayload(b)
		}
		return ev, nil
	}

	// unknown types still carry their metadata and raw payload
	var e EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	e.payload = b
	return &e, nil
}

type payloadSetter[T any] interface {
	*T
	Event
	SetPayload([]byte)
}

func decodeTyped[T any, PT payloadSetter[T]](b []byte) (Event, error) {
	var ret T
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, fmt.Errorf("could not decode %T: %w", ret, err)
	}
	p := PT(&ret)
	p.SetPayload(b)
	return p, nil
}

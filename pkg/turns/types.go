package turns

import (
	"encoding/base64"
	"fmt"

	"github.com/huandu/go-clone"
	"github.com/rs/zerolog"
)

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind discriminates the tagged union carried by a Part.
type PartKind string

const (
	PartKindText       PartKind = "text"
	PartKindToolCall   PartKind = "tool_call"
	PartKindToolResult PartKind = "tool_result"
	PartKindInlineData PartKind = "inline_data"
)

// ToolCall is the function-call half of a Part. ThoughtSignature is the
// backend's opaque reasoning token for the call, replayed with it in history.
type ToolCall struct {
	ID               string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name             string         `json:"name" yaml:"name"`
	Args             map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
	ThoughtSignature string         `json:"thought_signature,omitempty" yaml:"thought_signature,omitempty"`
}

// ToolResult is the function-response half of a Part. Payload is always an object
// on the wire; use NewToolResultPart to normalize scalar payloads.
type ToolResult struct {
	ID      string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string         `json:"name" yaml:"name"`
	Payload map[string]any `json:"payload" yaml:"payload"`
}

// InlineData is a binary attachment sent inline with a user turn.
type InlineData struct {
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Data     []byte `json:"data" yaml:"data"`
}

// Part is one element of a Turn. Exactly one of the fields matching Kind is set.
type Part struct {
	Kind       PartKind    `json:"kind" yaml:"kind"`
	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty" yaml:"tool_result,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty" yaml:"inline_data,omitempty"`
}

// Turn is a single message in the conversation: a role and its ordered parts.
type Turn struct {
	Role  Role   `json:"role" yaml:"role"`
	Parts []Part `json:"parts" yaml:"parts"`
}

func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

func NewToolCallPart(id, name string, args map[string]any) Part {
	if args == nil {
		args = map[string]any{}
	}
	return Part{Kind: PartKindToolCall, ToolCall: &ToolCall{ID: id, Name: name, Args: args}}
}

// NewToolResultPart wraps payload into an object when it is not one already,
// the same way function responses are normalized before being sent back.
func NewToolResultPart(id, name string, payload any) Part {
	return Part{Kind: PartKindToolResult, ToolResult: &ToolResult{ID: id, Name: name, Payload: NormalizePayload(payload)}}
}

func NewInlineDataPart(mimeType string, data []byte) Part {
	return Part{Kind: PartKindInlineData, InlineData: &InlineData{MimeType: mimeType, Data: data}}
}

// NormalizePayload turns an arbitrary tool payload into a JSON object.
func NormalizePayload(payload any) map[string]any {
	switch v := payload.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	default:
		return map[string]any{"result": v}
	}
}

func NewUserTurn(parts ...Part) Turn {
	return Turn{Role: RoleUser, Parts: parts}
}

func NewModelTurn(parts ...Part) Turn {
	return Turn{Role: RoleModel, Parts: parts}
}

// Text concatenates every text part of the turn in order.
func (t Turn) Text() string {
	ret := ""
	for _, p := range t.Parts {
		if p.Kind == PartKindText {
			ret += p.Text
		}
	}
	return ret
}

// ToolCalls returns the tool call parts of the turn in order.
func (t Turn) ToolCalls() []ToolCall {
	var ret []ToolCall
	for _, p := range t.Parts {
		if p.Kind == PartKindToolCall && p.ToolCall != nil {
			ret = append(ret, *p.ToolCall)
		}
	}
	return ret
}

// ToolResults returns the tool result parts of the turn in order.
func (t Turn) ToolResults() []ToolResult {
	var ret []ToolResult
	for _, p := range t.Parts {
		if p.Kind == PartKindToolResult && p.ToolResult != nil {
			ret = append(ret, *p.ToolResult)
		}
	}
	return ret
}

// Clone returns a deep copy of the turn. Argument and payload maps are copied too,
// so mutating the clone never leaks into caller-owned history.
func (t Turn) Clone() Turn {
	return clone.Clone(t).(Turn)
}

// CloneAll deep-copies an ordered history.
func CloneAll(history []Turn) []Turn {
	if len(history) == 0 {
		return nil
	}
	out := make([]Turn, len(history))
	for i := range history {
		out[i] = history[i].Clone()
	}
	return out
}

func (p Part) String() string {
	switch p.Kind {
	case PartKindText:
		return fmt.Sprintf("text(%q)", p.Text)
	case PartKindToolCall:
		if p.ToolCall != nil {
			return fmt.Sprintf("tool_call(%s)", p.ToolCall.Name)
		}
	case PartKindToolResult:
		if p.ToolResult != nil {
			return fmt.Sprintf("tool_result(%s)", p.ToolResult.Name)
		}
	case PartKindInlineData:
		if p.InlineData != nil {
			return fmt.Sprintf("inline_data(%s, %d bytes)", p.InlineData.MimeType, len(p.InlineData.Data))
		}
	}
	return string(p.Kind)
}

func (p Part) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", string(p.Kind))
	switch p.Kind {
	case PartKindText:
		e.Int("text_len", len(p.Text))
	case PartKindToolCall:
		if p.ToolCall != nil {
			e.Str("name", p.ToolCall.Name).Str("id", p.ToolCall.ID)
		}
	case PartKindToolResult:
		if p.ToolResult != nil {
			e.Str("name", p.ToolResult.Name).Str("id", p.ToolResult.ID)
		}
	case PartKindInlineData:
		if p.InlineData != nil {
			e.Str("mime_type", p.InlineData.MimeType).
				Int("base64_len", base64.StdEncoding.EncodedLen(len(p.InlineData.Data)))
		}
	}
}

func (t Turn) MarshalZerologObject(e *zerolog.Event) {
	e.Str("role", string(t.Role))
	e.Int("parts", len(t.Parts))
}

var _ zerolog.LogObjectMarshaler = Part{}
var _ zerolog.LogObjectMarshaler = Turn{}

package gemini

import (
	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/go-go-golems/trai/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
)

// Request is the body of a streamGenerateContent call.
type Request struct {
	Contents          []Content         `json:"contents"`
	Tools             []Tool            `json:"tools,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part mirrors the wire union: exactly one of the data fields is set.
// ThoughtSignature is opaque and must be echoed back on the part it came with.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob carries inline binary data; Data is base64 encoded by encoding/json.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type FunctionDeclaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	MaxOutputTokens *int            `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

type ThinkingConfig struct {
	ThinkingLevel string `json:"thinkingLevel,omitempty"`
}

// Response is one streamed frame.
type Response struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (r *Request) MarshalZerologObject(e *zerolog.Event) {
	e.Int("contents", len(r.Contents))
	n := 0
	for _, t := range r.Tools {
		n += len(t.FunctionDeclarations)
	}
	e.Int("function_declarations", n)
	e.Bool("system_instruction", r.SystemInstruction != nil)
	if gc := r.GenerationConfig; gc != nil {
		if gc.Temperature != nil {
			e.Float64("temperature", *gc.Temperature)
		}
		if gc.MaxOutputTokens != nil {
			e.Int("max_output_tokens", *gc.MaxOutputTokens)
		}
		if gc.ThinkingConfig != nil {
			e.Str("thinking_level", gc.ThinkingConfig.ThinkingLevel)
		}
	}
}

func (u UsageMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Int("prompt_tokens", u.PromptTokenCount)
	e.Int("candidates_tokens", u.CandidatesTokenCount)
	if u.ThoughtsTokenCount > 0 {
		e.Int("thoughts_tokens", u.ThoughtsTokenCount)
	}
	e.Int("total_tokens", u.TotalTokenCount)
}

// ContentsFromTurns converts conversation history into wire contents. Turns
// without any convertible part are dropped since the backend rejects empty
// contents. Consecutive turns of the same role are sent as one content.
func ContentsFromTurns(ts []turns.Turn) []Content {
	ret := make([]Content, 0, len(ts))
	for _, t := range ts {
		c := ContentFromTurn(t)
		if len(c.Parts) == 0 {
			continue
		}
		if n := len(ret); n > 0 && ret[n-1].Role == c.Role {
			ret[n-1].Parts = append(ret[n-1].Parts, c.Parts...)
			continue
		}
		ret = append(ret, c)
	}
	return ret
}

func ContentFromTurn(t turns.Turn) Content {
	role := "user"
	if t.Role == turns.RoleModel {
		role = "model"
	}
	c := Content{Role: role, Parts: make([]Part, 0, len(t.Parts))}
	for _, p := range t.Parts {
		switch p.Kind {
		case turns.PartKindText:
			if p.Text == "" {
				continue
			}
			c.Parts = append(c.Parts, Part{Text: p.Text})
		case turns.PartKindToolCall:
			if p.ToolCall == nil {
				continue
			}
			args := p.ToolCall.Args
			if args == nil {
				args = map[string]any{}
			}
			c.Parts = append(c.Parts, Part{
				FunctionCall:     &FunctionCall{Name: p.ToolCall.Name, Args: args},
				ThoughtSignature: p.ToolCall.ThoughtSignature,
			})
		case turns.PartKindToolResult:
			if p.ToolResult == nil {
				continue
			}
			c.Parts = append(c.Parts, Part{FunctionResponse: &FunctionResponse{
				Name:     p.ToolResult.Name,
				Response: turns.NormalizePayload(p.ToolResult.Payload),
			}})
		case turns.PartKindInlineData:
			if p.InlineData == nil {
				continue
			}
			c.Parts = append(c.Parts, Part{InlineData: &Blob{MimeType: p.InlineData.MimeType, Data: p.InlineData.Data}})
		}
	}
	return c
}

// ToolsFromDescriptors renders the catalog as a single functionDeclarations
// block, keeping parameter order. An empty descriptor list yields no tools.
func ToolsFromDescriptors(ds []tools.ToolDescriptor) []Tool {
	if len(ds) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(ds))
	for _, d := range ds {
		decl := FunctionDeclaration{Name: d.Name, Description: d.Description}
		// the API rejects object schemas without properties
		if len(d.Parameters) > 0 {
			decl.Parameters = d.JSONSchema()
		}
		decls = append(decls, decl)
	}
	return []Tool{{FunctionDeclarations: decls}}
}

// SystemInstruction wraps a prompt into the content shape the API expects.
func SystemInstruction(text string) *Content {
	if text == "" {
		return nil
	}
	return &Content{Parts: []Part{{Text: text}}}
}

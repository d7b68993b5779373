package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeInteger ParamType = "integer"
	ParamTypeNumber  ParamType = "number"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeArray   ParamType = "array"
	ParamTypeObject  ParamType = "object"
)

func (p ParamType) IsValid() bool {
	switch p {
	case ParamTypeString, ParamTypeInteger, ParamTypeNumber, ParamTypeBoolean, ParamTypeArray, ParamTypeObject:
		return true
	}
	return false
}

// Parameter describes a single named argument of a tool.
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Items describes array elements; only meaningful for ParamTypeArray.
	Items *Parameter `json:"items,omitempty" yaml:"items,omitempty"`
}

// ToolDescriptor is the declarative, immutable description of a tool the
// backend may invoke. Parameter order is preserved on the wire.
type ToolDescriptor struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// Parameter returns the named parameter if the descriptor declares it.
func (d ToolDescriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// JSONSchema renders the parameter list as an object schema.
func (d ToolDescriptor) JSONSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	var required []string
	for _, p := range d.Parameters {
		props.Set(p.Name, p.schema())
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       string(ParamTypeObject),
		Properties: props,
		Required:   required,
	}
}

// SchemaMap returns the parameter schema as a plain JSON object, suitable for
// embedding into a provider request.
func (d ToolDescriptor) SchemaMap() (map[string]any, error) {
	b, err := json.Marshal(d.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters of %s: %w", d.Name, err)
	}
	var ret map[string]any
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters of %s: %w", d.Name, err)
	}
	return ret, nil
}

func (p Parameter) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        string(p.Type),
		Description: p.Description,
	}
	for _, e := range p.Enum {
		s.Enum = append(s.Enum, e)
	}
	if p.Type == ParamTypeArray {
		if p.Items != nil {
			s.Items = p.Items.schema()
		} else {
			s.Items = &jsonschema.Schema{Type: string(ParamTypeString)}
		}
	}
	return s
}

func (d ToolDescriptor) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", d.Name)
	e.Int("parameters", len(d.Parameters))
}

// ToolCallRequest is a decoded tool invocation. Args stay loosely typed until
// the dispatcher validates them against the tool's descriptor.
type ToolCallRequest struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Args             map[string]any `json:"args"`
	ThoughtSignature string         `json:"thought_signature,omitempty"`
}

func (r ToolCallRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", r.ID)
	e.Str("name", r.Name)
	e.Int("arg_count", len(r.Args))
}

package tools

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Catalog is the read-only set of tools the backend may invoke.
type Catalog interface {
	// Describe returns every descriptor in declaration order.
	Describe() []ToolDescriptor
	Lookup(name string) (ToolDescriptor, bool)
}

// StaticCatalog is an ordered, immutable Catalog built once at startup.
type StaticCatalog struct {
	descriptors []ToolDescriptor
	index       map[string]int
}

var _ Catalog = (*StaticCatalog)(nil)

// NewStaticCatalog builds a catalog and lints it. Duplicate names, unknown
// parameter types and schemas that do not compile are rejected.
func NewStaticCatalog(descriptors ...ToolDescriptor) (*StaticCatalog, error) {
	c := &StaticCatalog{
		descriptors: make([]ToolDescriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if _, exists := c.index[d.Name]; exists {
			return nil, errors.Errorf("duplicate tool name %q", d.Name)
		}
		c.index[d.Name] = len(c.descriptors)
		c.descriptors = append(c.descriptors, d)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustStaticCatalog is NewStaticCatalog for package-level catalogs.
func MustStaticCatalog(descriptors ...ToolDescriptor) *StaticCatalog {
	c, err := NewStaticCatalog(descriptors...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *StaticCatalog) Describe() []ToolDescriptor {
	out := make([]ToolDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

func (c *StaticCatalog) Lookup(name string) (ToolDescriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return ToolDescriptor{}, false
	}
	return c.descriptors[i], true
}

func (c *StaticCatalog) Len() int {
	return len(c.descriptors)
}

// Filter returns a catalog restricted to the allowed names. A nil list keeps
// every tool. Naming a tool the catalog does not have is an error.
func (c *StaticCatalog) Filter(allowed []string) (*StaticCatalog, error) {
	if allowed == nil {
		return c, nil
	}
	for _, name := range allowed {
		if _, ok := c.Lookup(name); !ok {
			return nil, errors.Errorf("allowed tool %q is not in the catalog", name)
		}
	}
	cfg := ToolConfig{AllowedTools: allowed}
	var kept []ToolDescriptor
	for _, d := range c.descriptors {
		if cfg.IsToolAllowed(d.Name) {
			kept = append(kept, d)
		}
	}
	return NewStaticCatalog(kept...)
}

// Validate checks every descriptor for structural problems and compiles its
// JSON schema.
func (c *StaticCatalog) Validate() error {
	for _, d := range c.descriptors {
		if err := validateDescriptor(d); err != nil {
			return err
		}
	}
	return nil
}

func validateDescriptor(d ToolDescriptor) error {
	if d.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if d.Description == "" {
		return errors.Errorf("tool %s: description cannot be empty", d.Name)
	}
	seen := map[string]struct{}{}
	for _, p := range d.Parameters {
		if p.Name == "" {
			return errors.Errorf("tool %s: parameter name cannot be empty", d.Name)
		}
		if _, ok := seen[p.Name]; ok {
			return errors.Errorf("tool %s: duplicate parameter %q", d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Type.IsValid() {
			return errors.Errorf("tool %s: parameter %s has unknown type %q", d.Name, p.Name, p.Type)
		}
		if len(p.Enum) > 0 && p.Type != ParamTypeString {
			return errors.Errorf("tool %s: enum on non-string parameter %s", d.Name, p.Name)
		}
	}

	b, err := json.Marshal(d.JSONSchema())
	if err != nil {
		return errors.Wrapf(err, "tool %s: marshal schema", d.Name)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b)); err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", d.Name, err)
	}
	return nil
}

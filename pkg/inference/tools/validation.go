package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Args holds arguments that passed validation, coerced to canonical Go types:
// string, int64, float64, bool, []any and map[string]any.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) (int64, bool) {
	v, ok := a[name].(int64)
	return v, ok
}

func (a Args) Float(name string) (float64, bool) {
	v, ok := a[name].(float64)
	return v, ok
}

func (a Args) Bool(name string) (bool, bool) {
	v, ok := a[name].(bool)
	return v, ok
}

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ValidateArgs checks raw arguments against the descriptor. Required fields must
// be present and coercible; optional fields are coerced when present. Arguments
// the descriptor does not declare are dropped. The first failure, in parameter
// order, is returned as an ArgumentError.
func ValidateArgs(d ToolDescriptor, raw map[string]any) (Args, *ArgumentError) {
	out := make(Args, len(d.Parameters))
	for _, p := range d.Parameters {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, &ArgumentError{Field: p.Name, Reason: "missing required argument"}
			}
			continue
		}
		coerced, err := coerce(p, v)
		if err != nil {
			return nil, &ArgumentError{Field: p.Name, Reason: err.Error()}
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func coerce(p Parameter, v any) (any, error) {
	switch p.Type {
	case ParamTypeString:
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("expected string: %w", err)
		}
		if len(p.Enum) > 0 && !containsFold(p.Enum, s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(p.Enum, ", "))
		}
		return canonicalEnum(p.Enum, s), nil

	case ParamTypeInteger:
		f, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
		if f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
			return nil, fmt.Errorf("integer out of range: %v", f)
		}
		return int64(f), nil

	case ParamTypeNumber:
		f, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("expected number: %w", err)
		}
		return f, nil

	case ParamTypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return b, nil

	case ParamTypeArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		if p.Items == nil {
			return arr, nil
		}
		ret := make([]any, 0, len(arr))
		for i, item := range arr {
			c, err := coerce(*p.Items, item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			ret = append(ret, c)
		}
		return ret, nil

	case ParamTypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %q", p.Type)
}

// toNumber accepts integer and decimal representations, including numeric strings.
func toNumber(v any) (float64, error) {
	switch v.(type) {
	case bool, map[string]any, []any:
		return 0, fmt.Errorf("got %T", v)
	case string:
		s := strings.TrimSpace(v.(string))
		if s == "" {
			return 0, fmt.Errorf("empty string")
		}
		return cast.ToFloat64E(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("not a number")
	}
	return f, nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func canonicalEnum(values []string, s string) string {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v
		}
	}
	return s
}

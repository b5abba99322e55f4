package pipeline

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
)

// Kind is the declared type of an action parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindBool    Kind = "bool"
	KindStrings Kind = "strings"
)

// Param declares one action parameter.
type Param struct {
	Name        string
	Kind        Kind
	Required    bool
	Default     any
	Description string
}

// Schema is the declared parameter set of an action.
type Schema []Param

// Params holds parsed, typed parameter values.
type Params map[string]any

// Parse validates raw step parameters against s: unknown names and missing
// required values are errors, values are coerced to their declared kind and
// defaults are filled in.
func (s Schema) Parse(raw map[string]any) (Params, error) {
	known := make(map[string]Param, len(s))
	for _, p := range s {
		known[p.Name] = p
	}

	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, eris.Errorf("unknown params: %s", strings.Join(unknown, ", "))
	}

	out := make(Params, len(s))
	for _, p := range s {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, eris.Errorf("missing required param %q", p.Name)
			}
			if p.Default == nil {
				continue
			}
			v = p.Default
		}
		cv, err := coerce(p.Kind, v)
		if err != nil {
			return nil, eris.Wrapf(err, "param %q", p.Name)
		}
		out[p.Name] = cv
	}
	return out, nil
}

func coerce(k Kind, v any) (any, error) {
	switch k {
	case KindString:
		return cast.ToStringE(v)
	case KindInt:
		return cast.ToIntE(v)
	case KindFloat:
		return cast.ToFloat64E(v)
	case KindBool:
		return cast.ToBoolE(v)
	case KindStrings:
		if s, ok := v.(string); ok {
			return splitList(s), nil
		}
		return cast.ToStringSliceE(v)
	default:
		return nil, eris.Errorf("unsupported kind %q", k)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String returns a string param, or "" when unset.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Int returns an int param, or 0 when unset.
func (p Params) Int(name string) int {
	i, _ := p[name].(int)
	return i
}

// Float returns a float param, or 0 when unset.
func (p Params) Float(name string) float64 {
	f, _ := p[name].(float64)
	return f
}

// Bool returns a bool param, or false when unset.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Strings returns a string-list param, or nil when unset.
func (p Params) Strings(name string) []string {
	s, _ := p[name].([]string)
	return s
}

// Has reports whether name was set or defaulted.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Package strategy loads strategy definitions from YAML.
package strategy

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/biomap-cli/internal/model"
)

// varRe matches ${name} and ${name:-default}.
var varRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)(?::-([^}]*))?\}`)

// File is the on-disk strategy layout.
type File struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Variables   map[string]string `yaml:"variables,omitempty"`
	Steps       []model.Step      `yaml:"steps"`
}

// Load reads a strategy file. See Parse for substitution rules.
func Load(path string, vars map[string]string) (*model.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "strategy: read %s", path)
	}
	s, err := Parse(data, vars)
	if err != nil {
		return nil, eris.Wrapf(err, "strategy: %s", path)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a strategy document. ${name} references in scalar values
// are replaced from vars, then the file's variables block, then the
// environment; ${name:-default} falls back to default. A reference that
// resolves nowhere is an error, as is any unknown field.
func Parse(data []byte, vars map[string]string) (*model.Strategy, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, eris.Wrap(err, "parse yaml")
	}
	if len(root.Content) == 0 {
		return nil, eris.New("empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, eris.New("document must be a mapping")
	}

	defaults := make(map[string]string)
	var skip *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "variables" {
			skip = doc.Content[i+1]
			if err := skip.Decode(&defaults); err != nil {
				return nil, eris.Wrap(err, "decode variables")
			}
		}
	}

	lookup := func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		if v, ok := defaults[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
	missing := make(map[string]struct{})
	substitute(doc, skip, lookup, missing)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, eris.Errorf("undefined variables: %s", strings.Join(names, ", "))
	}

	// Re-encode so unknown fields are rejected by a strict decoder.
	buf, err := yaml.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "re-encode")
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrap(err, "decode strategy")
	}
	if len(f.Steps) == 0 {
		return nil, eris.New("no steps")
	}
	for i, st := range f.Steps {
		if st.Action == "" {
			return nil, eris.Errorf("step %d (%s): missing action", i, st.Name)
		}
	}
	return &model.Strategy{Name: f.Name, Description: f.Description, Steps: f.Steps}, nil
}

func substitute(n, skip *yaml.Node, lookup func(string) (string, bool), missing map[string]struct{}) {
	if n == skip {
		return
	}
	if n.Kind == yaml.ScalarNode {
		if !varRe.MatchString(n.Value) {
			return
		}
		n.Value = varRe.ReplaceAllStringFunc(n.Value, func(ref string) string {
			m := varRe.FindStringSubmatch(ref)
			if v, ok := lookup(m[1]); ok {
				return v
			}
			if strings.Contains(ref, ":-") {
				return m[2]
			}
			missing[m[1]] = struct{}{}
			return ref
		})
		// Let plain scalars re-resolve their type after substitution.
		if n.Style == 0 {
			n.Tag = ""
		}
		return
	}
	for _, c := range n.Content {
		substitute(c, skip, lookup, missing)
	}
}

// ParseVars turns key=value pairs into a map.
func ParseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, eris.Errorf("strategy: bad variable %q, want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

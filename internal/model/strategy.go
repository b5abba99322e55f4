package model

// Strategy is an ordered list of steps run against one execution context.
type Strategy struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step names an action and its parameters. Required defaults to true.
type Step struct {
	Name     string         `json:"name" yaml:"name"`
	Action   string         `json:"action" yaml:"action"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Required *bool          `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsRequired reports whether a failure of this step halts the strategy.
func (s Step) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// Label returns the step name, falling back to the action type.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Action
}

// ActionResult is what an action reports back to the executor.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

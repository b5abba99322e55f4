package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed strategy, unknown action, bad step
// parameters or a duplicate registration. It is raised before any step runs.
type ValidationError struct {
	Step   int // zero-based step index, -1 when not tied to a step
	Name   string
	Action string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: step %d (%s, action %q): %v", e.Step, e.Name, e.Action, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StepExecutionError reports that a required step failed and the strategy halted.
type StepExecutionError struct {
	Step   int
	Name   string
	Action string
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %d (%s, action %q) failed: %v", e.Step, e.Name, e.Action, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStepExecution reports whether err is (or wraps) a StepExecutionError.
func IsStepExecution(err error) bool {
	var se *StepExecutionError
	return errors.As(err, &se)
}

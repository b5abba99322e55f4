package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/model"
)

// StepOutcome is the recorded result of one step.
type StepOutcome struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Action   string        `json:"action"`
	Required bool          `json:"required"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary describes a strategy run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Strategy  string        `json:"strategy"`
	Steps     []StepOutcome `json:"steps"`
	Completed bool          `json:"completed"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Failed returns the outcomes of failed steps.
func (s *Summary) Failed() []StepOutcome {
	var out []StepOutcome
	for _, st := range s.Steps {
		if st.Status == model.StatusFailed {
			out = append(out, st)
		}
	}
	return out
}

// Executor runs strategies against a registry.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over reg.
func NewExecutor(reg *Registry) *Executor {
	return &Executor{registry: reg}
}

type preparedStep struct {
	step   model.Step
	action Action
	params Params
}

// Validate resolves every step's action, parses its params and runs any
// action-level param checks without running anything.
func (e *Executor) Validate(strategy *model.Strategy) error {
	_, err := e.prepare(strategy)
	return err
}

func (e *Executor) prepare(strategy *model.Strategy) ([]preparedStep, error) {
	if strategy == nil {
		return nil, &ValidationError{Step: -1, Err: eris.New("nil strategy")}
	}
	if len(strategy.Steps) == 0 {
		return nil, &ValidationError{Step: -1, Err: eris.Errorf("strategy %q has no steps", strategy.Name)}
	}
	out := make([]preparedStep, 0, len(strategy.Steps))
	for i, st := range strategy.Steps {
		if st.Action == "" {
			return nil, &ValidationError{Step: i, Name: st.Label(), Err: eris.New("missing action")}
		}
		f, err := e.registry.Get(st.Action)
		if err != nil {
			return nil, &ValidationError{Step: i, Name: st.Label(), Action: st.Action, Err: err}
		}
		a := f()
		params, err := a.Params().Parse(st.Params)
		if err != nil {
			return nil, &ValidationError{Step: i, Name: st.Label(), Action: st.Action, Err: err}
		}
		if v, ok := a.(Validator); ok {
			if err := v.Validate(params); err != nil {
				return nil, &ValidationError{Step: i, Name: st.Label(), Action: st.Action, Err: err}
			}
		}
		out = append(out, preparedStep{step: st, action: a, params: params})
	}
	return out, nil
}

// Execute validates the whole strategy, then runs its steps in order
// against ec. Cancellation is checked between steps only. A failing
// required step halts the run with a *StepExecutionError; a failing
// optional step is recorded and skipped. The summary is returned in every
// case where validation passed, together with whatever ec accumulated.
func (e *Executor) Execute(ctx context.Context, strategy *model.Strategy, ec *Context) (*Summary, error) {
	steps, err := e.prepare(strategy)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "executor"), zap.String("strategy", strategy.Name), zap.String("run_id", ec.RunID))
	log.Info("executor: starting strategy", zap.Int("steps", len(steps)))

	start := time.Now()
	summary := &Summary{RunID: ec.RunID, Strategy: strategy.Name}
	defer func() { summary.Duration = time.Since(start) }()

	for i, ps := range steps {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			ec.Record(model.ProvenanceEvent{
				Kind:    model.EventStep,
				Step:    ps.step.Label(),
				Action:  ps.step.Action,
				Status:  model.StatusSkipped,
				Reason:  "cancelled",
				Message: err.Error(),
			})
			log.Warn("executor: cancelled before step", zap.Int("step", i), zap.String("name", ps.step.Label()))
			return summary, eris.Wrapf(err, "strategy %s cancelled before step %d", strategy.Name, i)
		}

		outcome := e.runStep(ctx, i, ps, ec)
		summary.Steps = append(summary.Steps, outcome.StepOutcome)

		if outcome.Status == model.StatusOK {
			ec.AddStat("steps.completed", 1)
			continue
		}
		ec.AddStat("steps.failed", 1)

		if ps.step.IsRequired() {
			log.Error("executor: required step failed, halting",
				zap.Int("step", i),
				zap.String("name", ps.step.Label()),
				zap.Error(outcome.err),
			)
			return summary, &StepExecutionError{Step: i, Name: ps.step.Label(), Action: ps.step.Action, Err: outcome.err}
		}
		log.Warn("executor: optional step failed, continuing",
			zap.Int("step", i),
			zap.String("name", ps.step.Label()),
			zap.Error(outcome.err),
		)
	}

	summary.Completed = true
	log.Info("executor: strategy complete", zap.Duration("duration", time.Since(start)))
	return summary, nil
}

type stepRun struct {
	StepOutcome
	err error
}

func (e *Executor) runStep(ctx context.Context, i int, ps preparedStep, ec *Context) stepRun {
	start := time.Now()
	res, err := invoke(ctx, ps, ec)
	if err == nil && !res.Success {
		err = eris.New(res.Message)
		if res.Message == "" {
			err = eris.New("action reported failure")
		}
	}

	out := stepRun{
		StepOutcome: StepOutcome{
			Index:    i,
			Name:     ps.step.Label(),
			Action:   ps.step.Action,
			Required: ps.step.IsRequired(),
			Status:   model.StatusOK,
			Message:  res.Message,
			Duration: time.Since(start),
		},
		err: err,
	}
	ev := model.ProvenanceEvent{
		Kind:     model.EventStep,
		Step:     out.Name,
		Action:   out.Action,
		Status:   model.StatusOK,
		Message:  res.Message,
		Duration: out.Duration,
	}
	if err != nil {
		out.Status = model.StatusFailed
		out.Error = err.Error()
		ev.Status = model.StatusFailed
		ev.Reason = err.Error()
	}
	ec.Record(ev)
	return out
}

// invoke runs the action, converting a panic into an error.
func invoke(ctx context.Context, ps preparedStep, ec *Context) (res model.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("action %q panicked: %v", ps.step.Action, r))
		}
	}()
	return ps.action.Run(ctx, ps.params, ec)
}

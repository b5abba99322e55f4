package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/model"
)

// recordAction appends its "tag" param to a shared slice.
type recordAction struct {
	log *[]string
}

func (a *recordAction) Params() Schema {
	return Schema{{Name: "tag", Kind: KindString, Required: true}}
}

func (a *recordAction) Run(_ context.Context, p Params, ec *Context) (model.ActionResult, error) {
	*a.log = append(*a.log, p.String("tag"))
	ec.AddStat("recorded", 1)
	return model.ActionResult{Success: true, Message: "recorded " + p.String("tag")}, nil
}

type errAction struct{ err error }

func (a *errAction) Params() Schema { return nil }

func (a *errAction) Run(context.Context, Params, *Context) (model.ActionResult, error) {
	return model.ActionResult{}, a.err
}

type unsuccessfulAction struct{}

func (unsuccessfulAction) Params() Schema { return nil }

func (unsuccessfulAction) Run(context.Context, Params, *Context) (model.ActionResult, error) {
	return model.ActionResult{Success: false, Message: "nothing to do"}, nil
}

type panicAction struct{}

func (panicAction) Params() Schema { return nil }

func (panicAction) Run(context.Context, Params, *Context) (model.ActionResult, error) {
	panic("boom")
}

type cancelAction struct{ cancel context.CancelFunc }

func (a cancelAction) Params() Schema { return nil }

func (a cancelAction) Run(context.Context, Params, *Context) (model.ActionResult, error) {
	a.cancel()
	return model.ActionResult{Success: true}, nil
}

// boundedAction accepts a ratio in [0,1] and checks it up front.
type boundedAction struct{ log *[]string }

func (a *boundedAction) Params() Schema {
	return Schema{{Name: "ratio", Kind: KindFloat, Required: true}}
}

func (a *boundedAction) Validate(p Params) error {
	if r := p.Float("ratio"); r < 0 || r > 1 {
		return errors.New("ratio out of range")
	}
	return nil
}

func (a *boundedAction) Run(_ context.Context, _ Params, _ *Context) (model.ActionResult, error) {
	*a.log = append(*a.log, "bounded")
	return model.ActionResult{Success: true}, nil
}

func optional() *bool {
	f := false
	return &f
}

func newTestRegistry(t *testing.T, log *[]string) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister("record", func() Action { return &recordAction{log: log} })
	reg.MustRegister("error", func() Action { return &errAction{err: errors.New("exploded")} })
	reg.MustRegister("unsuccessful", func() Action { return unsuccessfulAction{} })
	reg.MustRegister("panic", func() Action { return panicAction{} })
	reg.MustRegister("bounded", func() Action { return &boundedAction{log: log} })
	return reg
}

func TestExecute_RunsStepsInOrder(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))
	ec := NewContext()

	summary, err := ex.Execute(context.Background(), &model.Strategy{
		Name: "ordered",
		Steps: []model.Step{
			{Name: "first", Action: "record", Params: map[string]any{"tag": "a"}},
			{Name: "second", Action: "record", Params: map[string]any{"tag": "b"}},
			{Action: "record", Params: map[string]any{"tag": "c"}},
		},
	}, ec)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, log)
	assert.True(t, summary.Completed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, ec.RunID, summary.RunID)
	require.Len(t, summary.Steps, 3)
	assert.Equal(t, "record", summary.Steps[2].Name, "unnamed step falls back to action")
	assert.Empty(t, summary.Failed())

	prov := ec.Provenance()
	require.Len(t, prov, 3)
	for i, ev := range prov {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, model.EventStep, ev.Kind)
		assert.Equal(t, model.StatusOK, ev.Status)
	}
	v, _ := ec.Stat("steps.completed")
	assert.Equal(t, 3.0, v)
}

func TestExecute_ValidationBeforeAnyStep(t *testing.T) {
	tests := []struct {
		name  string
		steps []model.Step
	}{
		{"unknown action", []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a"}},
			{Action: "nope"},
		}},
		{"missing required param", []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a"}},
			{Action: "record"},
		}},
		{"unknown param", []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a", "extra": 1}},
		}},
		{"missing action", []model.Step{{Name: "blank"}}},
		{"action rejects param value", []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a"}},
			{Action: "bounded", Required: optional(), Params: map[string]any{"ratio": 7.5}},
		}},
		{"empty strategy", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log []string
			ex := NewExecutor(newTestRegistry(t, &log))
			ec := NewContext()

			summary, err := ex.Execute(context.Background(), &model.Strategy{Name: "bad", Steps: tt.steps}, ec)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "got %T", err)
			assert.Nil(t, summary)
			assert.Empty(t, log, "no step may run when validation fails")
			assert.Empty(t, ec.Provenance())
		})
	}
}

func TestExecute_ValidationErrorNamesStep(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))
	err := ex.Validate(&model.Strategy{Steps: []model.Step{
		{Action: "record", Params: map[string]any{"tag": "a"}},
		{Name: "broken", Action: "missing"},
	}})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Step)
	assert.Equal(t, "broken", ve.Name)
	assert.Equal(t, "missing", ve.Action)
}

func TestExecute_RequiredFailureHalts(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))
	ec := NewContext()

	summary, err := ex.Execute(context.Background(), &model.Strategy{
		Name: "halting",
		Steps: []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a"}},
			{Name: "explode", Action: "error"},
			{Action: "record", Params: map[string]any{"tag": "never"}},
		},
	}, ec)

	var se *StepExecutionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Step)
	assert.Equal(t, "explode", se.Name)
	assert.Contains(t, se.Error(), "exploded")

	require.NotNil(t, summary)
	assert.False(t, summary.Completed)
	assert.Equal(t, []string{"a"}, log)
	require.Len(t, summary.Steps, 2)
	assert.Equal(t, model.StatusFailed, summary.Steps[1].Status)

	// Partial results stay inspectable.
	prov := ec.Provenance()
	require.Len(t, prov, 2)
	assert.Equal(t, model.StatusOK, prov[0].Status)
	assert.Equal(t, model.StatusFailed, prov[1].Status)
	assert.Contains(t, prov[1].Reason, "exploded")
	v, _ := ec.Stat("recorded")
	assert.Equal(t, 1.0, v)
}

func TestExecute_OptionalFailureContinues(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))
	ec := NewContext()

	summary, err := ex.Execute(context.Background(), &model.Strategy{
		Name: "lenient",
		Steps: []model.Step{
			{Name: "flaky", Action: "error", Required: optional()},
			{Name: "noop", Action: "unsuccessful", Required: optional()},
			{Action: "record", Params: map[string]any{"tag": "after"}},
		},
	}, ec)
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.Equal(t, []string{"after"}, log)
	failed := summary.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "flaky", failed[0].Name)
	assert.False(t, failed[0].Required)
	assert.Equal(t, "nothing to do", failed[1].Error)

	prov := ec.Provenance()
	require.Len(t, prov, 3)
	assert.Equal(t, model.StatusFailed, prov[0].Status)
	assert.Equal(t, model.StatusFailed, prov[1].Status)
	assert.Equal(t, model.StatusOK, prov[2].Status)
	v, _ := ec.Stat("steps.failed")
	assert.Equal(t, 2.0, v)
}

func TestExecute_UnsuccessfulResultIsFailure(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))

	_, err := ex.Execute(context.Background(), &model.Strategy{
		Steps: []model.Step{{Action: "unsuccessful"}},
	}, NewContext())
	require.Error(t, err)
	assert.True(t, IsStepExecution(err))
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestExecute_PanicBecomesStepFailure(t *testing.T) {
	var log []string
	ex := NewExecutor(newTestRegistry(t, &log))

	summary, err := ex.Execute(context.Background(), &model.Strategy{
		Steps: []model.Step{{Action: "panic"}},
	}, NewContext())
	require.Error(t, err)
	assert.True(t, IsStepExecution(err))
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, summary.Failed(), 1)
}

func TestExecute_CancelledBetweenSteps(t *testing.T) {
	var log []string
	reg := newTestRegistry(t, &log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg.MustRegister("cancel", func() Action { return cancelAction{cancel: cancel} })

	ex := NewExecutor(reg)
	ec := NewContext()
	summary, err := ex.Execute(ctx, &model.Strategy{
		Steps: []model.Step{
			{Action: "record", Params: map[string]any{"tag": "a"}},
			{Action: "cancel"},
			{Action: "record", Params: map[string]any{"tag": "b"}},
		},
	}, ec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled before step 2")
	assert.True(t, summary.Cancelled)
	assert.False(t, summary.Completed)
	assert.Equal(t, []string{"a"}, log)

	prov := ec.Provenance()
	require.Len(t, prov, 3)
	assert.Equal(t, model.StatusSkipped, prov[2].Status)
	assert.Equal(t, "cancelled", prov[2].Reason)
}

func TestExecute_NilStrategy(t *testing.T) {
	ex := NewExecutor(NewRegistry())
	_, err := ex.Execute(context.Background(), nil, NewContext())
	assert.True(t, IsValidation(err))
}

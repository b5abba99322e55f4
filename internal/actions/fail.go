package actions

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

// fail always fails. It exercises required/optional step handling.
type fail struct{}

func (a *fail) Description() string { return "always fail with the given message" }

func (a *fail) Params() pipeline.Schema {
	return pipeline.Schema{
		{Name: "message", Kind: pipeline.KindString, Default: "forced failure"},
	}
}

func (a *fail) Run(_ context.Context, p pipeline.Params, _ *pipeline.Context) (model.ActionResult, error) {
	return model.ActionResult{Success: false, Message: p.String("message")}, eris.New(p.String("message"))
}

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/model"
)

type describedAction struct{}

func (describedAction) Params() Schema      { return nil }
func (describedAction) Description() string { return "does a thing" }
func (describedAction) Run(context.Context, Params, *Context) (model.ActionResult, error) {
	return model.ActionResult{Success: true}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("b", func() Action { return describedAction{} }))
	require.NoError(t, reg.Register("a", func() Action { return unsuccessfulAction{} }))

	f, err := reg.Get("b")
	require.NoError(t, err)
	assert.NotNil(t, f())
	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Equal(t, "does a thing", reg.Describe("b"))
	assert.Empty(t, reg.Describe("a"))
	assert.Empty(t, reg.Describe("zzz"))
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("x", func() Action { return describedAction{} }))

	err := reg.Register("x", func() Action { return describedAction{} })
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "already registered")

	assert.Panics(t, func() {
		reg.MustRegister("x", func() Action { return describedAction{} })
	})
}

func TestRegistry_InvalidRegistration(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, IsValidation(reg.Register("", func() Action { return describedAction{} })))
	assert.True(t, IsValidation(reg.Register("x", nil)))
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := NewRegistry().Get("missing")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `"missing"`)
}

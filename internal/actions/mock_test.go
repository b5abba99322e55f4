package actions

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/biomap-cli/internal/resolve"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, id string) (*resolve.Resolution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolve.Resolution), args.Error(1)
}

package main

import (
	"context"

	"github.com/sells-group/biomap-cli/internal/store"
)

// initStore opens the configured store. It returns nil when the store is
// disabled.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN(), &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

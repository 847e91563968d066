package main

import (
	"context"

	"github.com/evolbiolab/paperval/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	poolCfg := &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolCfg)
}

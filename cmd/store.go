package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/permit-finder/permit-cli/internal/permit"
)

// openStore connects the configured store backend. Connection failures are
// configuration-class errors: they abort the command before any partial run.
func openStore(ctx context.Context) (permit.Store, error) {
	switch cfg.Store.Driver {
	case "postgres", "":
		return permit.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	case "sqlite":
		return permit.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

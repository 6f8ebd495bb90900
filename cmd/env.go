package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-hub/internal/normalize"
	"github.com/sells-group/campaign-hub/internal/reconcile"
	"github.com/sells-group/campaign-hub/internal/source"
	"github.com/sells-group/campaign-hub/internal/store"
	"github.com/sells-group/campaign-hub/internal/verifier"
)

// appEnv holds the store, caches and service shared by the commands.
type appEnv struct {
	Store     store.Store
	Aliases   *normalize.AliasCache
	Snapshots *source.SnapshotCache
	Service   *reconcile.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, aliases *normalize.Aliases) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s.WithAliases(aliases), nil
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return nil, err
		}
		return s.WithAliases(aliases), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates the config for mode, opens and migrates the store, and
// builds the reconciliation service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	aliasCache := normalize.NewAliasCache(cfg.Sources.AliasesPath)
	aliases, err := aliasCache.Get()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, aliases)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	engine, err := reconcile.NewEngine(cfg.Reconcile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	snapshots := source.NewSnapshotCache(cfg.Sources.SnapshotCacheTTL())
	svc := reconcile.NewService(engine, reconcile.Deps{
		Baseline:  source.NewBaseline(cfg.Sources.BaselineDir, snapshots, aliasCache),
		Analytics: st,
		Overrides: st,
		Verifier:  verifier.NewResolver(st, aliasCache),
		Aliases:   aliasCache,
		Retry:     cfg.Retry.Resilience(),
	})

	return &appEnv{
		Store:     st,
		Aliases:   aliasCache,
		Snapshots: snapshots,
		Service:   svc,
	}, nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/aquasolve/aquasolve/pkg/builder"
	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/modeltree"
	"github.com/aquasolve/aquasolve/pkg/session"
	"github.com/aquasolve/aquasolve/pkg/stores"
)

// loadConfig reads the application config from --config, falling back
// to defaults when no file is present.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured session store with migrations applied.
// The caller closes it.
func openStore(ctx context.Context, cfg *config.Config) (stores.Store, error) {
	var st stores.Store
	switch cfg.Storage.Backend {
	case "memory":
		st = stores.NewMemoryStore()
	default:
		st = stores.NewSQLiteStore(cfg.StoreConfig())
	}
	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return st, nil
}

// withStore runs fn against an open store, handling config loading and
// store lifecycle for the command body.
func withStore(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, st stores.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, cfg, st)
}

// loadSession fetches a session record and decodes its document.
func loadSession(ctx context.Context, st stores.Store, id string) (*session.FlowsheetSession, error) {
	rec, err := st.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	var sess session.FlowsheetSession
	if err := json.Unmarshal(rec.Document, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

// saveSession serializes the session and writes it back to the store.
func saveSession(ctx context.Context, st stores.Store, sess *session.FlowsheetSession) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	return st.SaveSession(ctx, &stores.SessionRecord{
		ID:        sess.ID,
		Name:      sess.Name,
		Status:    string(sess.Status),
		Document:  doc,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	})
}

// mutateSession loads a session, applies fn, and writes it back.
func mutateSession(ctx context.Context, id string, fn func(sess *session.FlowsheetSession) error) error {
	return withStore(ctx, func(ctx context.Context, cfg *config.Config, st stores.Store) error {
		sess, err := loadSession(ctx, st, id)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		return saveSession(ctx, st, sess)
	})
}

// buildModel constructs the solvable model from a session definition
// and logs any build warnings.
func buildModel(sess *session.FlowsheetSession) (*builder.Result, error) {
	result, err := builder.New(log.Logger).Build(sess)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Warn().Str("session_id", sess.ID).Msg(w)
	}
	return result, nil
}

// newRunner wires the engine runner with the tree-backed collaborators.
// Solver options come from the session's pipeline config, topped up
// with the application solver defaults.
func newRunner(cfg *config.Config, pc engine.PipelineConfig) *engine.Runner {
	if pc.SolverOptions == nil {
		pc.SolverOptions = cfg.SolverOptions()
	}
	deps := engine.PipelineDeps{
		Introspector: modeltree.NewIntrospector(),
		Initializer:  modeltree.NewInitializer(),
		Solver:       modeltree.NewResidualSolver(),
		Decomposer:   modeltree.NewDecomposer(),
	}
	return engine.NewRunner(log.Logger, pc, deps)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// parseFloat parses a command-line float argument with a named error.
func parseFloat(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

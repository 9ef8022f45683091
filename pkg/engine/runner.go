package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Runner is the engine facade. It exposes each pipeline stage as an
// individually callable query alongside the full pipeline run, plus
// path-based variable operations and the recovery entry points.
type Runner struct {
	log      zerolog.Logger
	config   PipelineConfig
	deps     PipelineDeps
	resolver *PathResolver
	analyzer *FailureAnalyzer
	executor *RecoveryExecutor

	// OnStage is forwarded to pipelines created by Solve.
	OnStage func(StageResult)
}

// NewRunner creates a runner with the given configuration and
// collaborators.
func NewRunner(log zerolog.Logger, config PipelineConfig, deps PipelineDeps) *Runner {
	r := &Runner{
		log:      log.With().Str("component", "runner").Logger(),
		config:   config,
		deps:     deps,
		resolver: NewPathResolver(log),
		analyzer: NewFailureAnalyzer(log, deps.Introspector),
		executor: NewRecoveryExecutor(log, deps.Introspector, deps.Solver),
	}
	r.executor.Reinitialize = r.reinitialize
	return r
}

// Resolver returns the runner's path resolver.
func (r *Runner) Resolver() *PathResolver {
	return r.resolver
}

// CheckDOF runs the degrees-of-freedom check on its own.
func (r *Runner) CheckDOF(m Model) DOFReport {
	return NewDOFChecker(r.log, r.deps.Introspector).Check(m)
}

// SurveyScaling runs the scaling stage on its own, honoring the
// configured auto-scale setting.
func (r *Runner) SurveyScaling(m Model) (ScalingReport, error) {
	return NewScaler(r.log, r.deps.Introspector).Run(m, r.config.AutoScale)
}

// Order sequences the model's units without running the pipeline.
func (r *Runner) Order(ctx context.Context, m Model, mode OrderMode) (OrderResult, error) {
	orderer := NewTopologicalOrderer(r.log, r.deps.Decomposer)
	return orderer.Order(ctx, m, mode, r.config.TearStreams)
}

// Diagnose runs structural diagnostics, or numerical diagnostics when
// postSolve is set.
func (r *Runner) Diagnose(m Model, postSolve bool) (DiagnosticsReport, error) {
	diag := NewDiagnostician(r.log, r.deps.Introspector)
	if postSolve {
		return diag.PostSolve(m)
	}
	return diag.PreSolve(m)
}

// Solve runs the full pipeline on the model.
func (r *Runner) Solve(ctx context.Context, m Model) PipelineResult {
	pipeline := NewHygienePipeline(r.log, r.config, r.deps)
	pipeline.OnStage = r.OnStage
	return pipeline.Run(ctx, m)
}

// SuggestRecovery analyzes a failed solve and returns suggested actions
// without touching the model. Callers inspect the suggestions before
// deciding whether to attempt automated recovery.
func (r *Runner) SuggestRecovery(m Model, report SolveReport) FailureAnalysis {
	return r.analyzer.Analyze(m, report)
}

// AttemptRecovery applies the analysis's automated actions with retried
// solves, bounded by the configured attempt limit.
func (r *Runner) AttemptRecovery(ctx context.Context, m Model, analysis FailureAnalysis) RecoveryResult {
	return r.executor.Execute(ctx, m, analysis, r.config.SolverOptions, r.config.MaxRecoveryAttempts)
}

// Fix fixes every variable the path matches at the given value and
// returns the count.
func (r *Runner) Fix(m Model, path string, value float64) (int, error) {
	return r.resolver.Fix(m, path, value)
}

// Unfix releases every variable the path matches and returns the count.
func (r *Runner) Unfix(m Model, path string) (int, error) {
	return r.resolver.Unfix(m, path)
}

// Value resolves a single-variable path and returns its value.
func (r *Runner) Value(m Model, path string) (float64, bool, error) {
	return r.resolver.Value(m, path)
}

// SetScalingHint records a scaling factor on every variable the path
// matches and returns the count.
func (r *Runner) SetScalingHint(m Model, path string, factor float64) (int, error) {
	return r.resolver.SetScalingHint(m, path, factor)
}

// reinitialize re-runs sequential initialization, used by the recovery
// executor's initialization-retry strategy.
func (r *Runner) reinitialize(ctx context.Context, m Model) error {
	orderer := NewTopologicalOrderer(r.log, r.deps.Decomposer)
	order, err := orderer.Order(ctx, m, OrderModePlanning, r.config.TearStreams)
	if err != nil {
		return err
	}
	units := make(map[string]UnitNode, len(m.Units()))
	for _, u := range m.Units() {
		units[u.Name] = u
	}
	for _, name := range order.Order {
		unit := units[name]
		if unit.InitMethod == InitNone {
			continue
		}
		if err := r.deps.Initializer.Initialize(ctx, m, unit); err != nil {
			return err
		}
		// Propagation is best effort, matching the pipeline's
		// initialization stage.
		for _, conn := range m.Connections() {
			if conn.Source != name {
				continue
			}
			if err := r.deps.Initializer.PropagateState(ctx, m, conn); err != nil {
				r.log.Warn().Str("connection", conn.Name).Err(err).
					Msg("state propagation failed during reinitialization")
			}
		}
	}
	return nil
}

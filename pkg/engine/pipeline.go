package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PipelineDeps are the external collaborators a pipeline needs. The
// introspector, initializer, and solver wrap the underlying modeling
// environment; the decomposer is only consulted in bound ordering mode
// and may be nil otherwise.
type PipelineDeps struct {
	Introspector Introspector
	Initializer  Initializer
	Solver       Solver
	Decomposer   Decomposer
}

// HygienePipeline drives a model through the staged solve sequence:
// DOF check, scaling, sequential initialization, pre-solve diagnostics,
// solve, optional relaxed re-solve, post-solve diagnostics. The first
// failing stage halts the run, except a failed solve which may continue
// through the relaxed re-solve branch.
type HygienePipeline struct {
	log    zerolog.Logger
	config PipelineConfig

	intro    Introspector
	init     Initializer
	solver   Solver
	dof      *DOFChecker
	scaler   *Scaler
	orderer  *TopologicalOrderer
	diag     *Diagnostician
	analyzer *FailureAnalyzer
	executor *RecoveryExecutor

	// OnStage, when set, is called after every stage result is recorded.
	// Used to publish metrics and run events.
	OnStage func(StageResult)

	mu      sync.Mutex
	history []StageResult
}

// NewHygienePipeline creates a pipeline with the given configuration
// and collaborators.
func NewHygienePipeline(log zerolog.Logger, config PipelineConfig, deps PipelineDeps) *HygienePipeline {
	plog := log.With().Str("component", "pipeline").Logger()
	p := &HygienePipeline{
		log:      plog,
		config:   config,
		intro:    deps.Introspector,
		init:     deps.Initializer,
		solver:   deps.Solver,
		dof:      NewDOFChecker(plog, deps.Introspector),
		scaler:   NewScaler(plog, deps.Introspector),
		orderer:  NewTopologicalOrderer(plog, deps.Decomposer),
		diag:     NewDiagnostician(plog, deps.Introspector),
		analyzer: NewFailureAnalyzer(plog, deps.Introspector),
		executor: NewRecoveryExecutor(plog, deps.Introspector, deps.Solver),
	}
	p.executor.Reinitialize = p.reinitialize
	return p
}

// State returns the pipeline's current state, determined by the last
// history entry. An empty history is idle; a failed last stage reports
// the failed state.
func (p *HygienePipeline) State() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return StageIdle
	}
	last := p.history[len(p.history)-1]
	if !last.Success {
		return StageFailed
	}
	return last.Stage
}

// History returns a copy of the stage results recorded so far.
func (p *HygienePipeline) History() []StageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StageResult, len(p.history))
	copy(out, p.history)
	return out
}

// Reset clears the history, returning the pipeline to idle.
func (p *HygienePipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
}

// record appends a stage result to the history. The history is append
// only; nothing ever rewrites an earlier entry.
func (p *HygienePipeline) record(result StageResult) {
	p.mu.Lock()
	p.history = append(p.history, result)
	p.mu.Unlock()
	p.log.Info().Str("stage", string(result.Stage)).Bool("success", result.Success).
		Str("message", result.Message).Msg("stage recorded")
	if p.OnStage != nil {
		p.OnStage(result)
	}
}

func stageResult(stage Stage, started time.Time, success bool, message string) StageResult {
	return StageResult{
		Stage:       stage,
		Success:     success,
		Message:     message,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
}

// Run executes the full pipeline on the model. The returned result
// aggregates every stage's warnings and errors; Success is true only
// when the pipeline reached completion.
func (p *HygienePipeline) Run(ctx context.Context, m Model) PipelineResult {
	p.Reset()

	if sr, ok := p.runDOFCheck(m); !ok {
		return p.failed(sr)
	}
	if sr, ok := p.runScaling(m); !ok {
		return p.failed(sr)
	}
	if sr, ok := p.runInitialization(ctx, m); !ok {
		return p.failed(sr)
	}
	if sr, ok := p.runPreSolveDiagnostics(m); !ok {
		return p.failed(sr)
	}

	solveOK, solveReport, solveDetails := p.runSolve(ctx, m)
	if !solveOK {
		if !p.config.EnableRelaxedSolve {
			return p.failed(p.lastResult())
		}
		if !p.runRelaxedSolve(ctx, m, solveReport) {
			return p.failed(p.lastResult())
		}
		// Recovery found a solution; the run resumes at post-solve
		// diagnostics with the recovered model state in effect.
	}

	if sr, ok := p.runPostSolveDiagnostics(m); !ok {
		return p.failed(sr)
	}

	completed := stageResult(StageCompleted, time.Now(), true, "pipeline completed")
	p.record(completed)
	result := p.aggregate(true, StageCompleted, "pipeline completed")
	result.Details = solveDetails
	return result
}

func (p *HygienePipeline) runDOFCheck(m Model) (StageResult, bool) {
	started := time.Now()
	report := p.dof.Check(m)

	ok := report.Status == DOFReady
	if report.Status == DOFOverspecified && p.config.AllowOverspecified {
		ok = true
	}
	sr := stageResult(StageDOFCheck, started, ok, report.Message)
	sr.Details = map[string]interface{}{
		"status":             string(report.Status),
		"degrees_of_freedom": report.DegreesOfFreedom,
		"free_variables":     report.FreeVariables,
		"active_constraints": report.ActiveConstraints,
	}
	if len(report.Suggestions) > 0 {
		sr.Details["suggestions"] = report.Suggestions
	}
	if report.Status == DOFOverspecified && p.config.AllowOverspecified {
		sr.Warnings = append(sr.Warnings, report.Message)
	}
	if !ok {
		sr.Errors = append(sr.Errors, report.Message)
	}
	p.record(sr)
	return sr, ok
}

func (p *HygienePipeline) runScaling(m Model) (StageResult, bool) {
	started := time.Now()
	report, err := p.scaler.Run(m, p.config.AutoScale)
	if err != nil {
		sr := stageResult(StageScaling, started, false, "scaling stage failed")
		sr.Errors = append(sr.Errors, err.Error())
		p.record(sr)
		return sr, false
	}

	sr := stageResult(StageScaling, started, true, "scaling stage complete")
	sr.Details = map[string]interface{}{
		"applied":                report.Applied,
		"unscaled_variables":     report.UnscaledVariables,
		"badly_scaled_variables": report.BadlyScaledVariables,
		"unscaled_constraints":   report.UnscaledConstraints,
	}
	if p.config.ReportScalingIssues {
		sr.Warnings = append(sr.Warnings, report.Issues...)
		if report.UnscaledVariables > 0 {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("%d variable(s) have no scaling factor", report.UnscaledVariables))
		}
		if report.BadlyScaledVariables > 0 {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("%d variable(s) are badly scaled", report.BadlyScaledVariables))
		}
	}
	p.record(sr)
	return sr, true
}

func (p *HygienePipeline) runInitialization(ctx context.Context, m Model) (StageResult, bool) {
	started := time.Now()
	order, err := p.orderer.Order(ctx, m, OrderModePlanning, p.config.TearStreams)
	if err != nil {
		sr := stageResult(StageInitialization, started, false, "failed to order units for initialization")
		sr.Errors = append(sr.Errors, err.Error())
		p.record(sr)
		return sr, false
	}

	units := make(map[string]UnitNode, len(m.Units()))
	for _, u := range m.Units() {
		units[u.Name] = u
	}

	var warnings []string
	for _, name := range order.Order {
		unit := units[name]
		if unit.InitMethod == InitNone {
			p.log.Debug().Str("unit", name).Msg("initialization skipped for unit")
			continue
		}
		if err := p.init.Initialize(ctx, m, unit); err != nil {
			sr := stageResult(StageInitialization, started, false,
				fmt.Sprintf("initialization failed for unit %s", name))
			sr.Errors = append(sr.Errors, err.Error())
			sr.Warnings = append(sr.Warnings, warnings...)
			p.record(sr)
			return sr, false
		}
		// Push the freshly initialized outlet state downstream before
		// the next unit initializes. Propagation is best effort: a
		// failed push is recorded as a warning and the stage continues.
		for _, conn := range m.Connections() {
			if conn.Source != name {
				continue
			}
			if err := p.init.PropagateState(ctx, m, conn); err != nil {
				p.log.Warn().Str("connection", conn.Name).Err(err).
					Msg("state propagation failed")
				warnings = append(warnings,
					fmt.Sprintf("state propagation failed on connection %s: %v", conn.Name, err))
			}
		}
	}

	sr := stageResult(StageInitialization, started, true,
		fmt.Sprintf("initialized %d unit(s)", len(order.Order)))
	sr.Warnings = append(sr.Warnings, warnings...)
	sr.Details = map[string]interface{}{
		"order":         order.Order,
		"tears_applied": order.TearsApplied,
	}
	p.record(sr)
	return sr, true
}

// reinitialize re-runs sequential initialization without touching the
// stage history, used by the recovery executor's initialization-retry
// strategy. Propagation stays best effort here too.
func (p *HygienePipeline) reinitialize(ctx context.Context, m Model) error {
	order, err := p.orderer.Order(ctx, m, OrderModePlanning, p.config.TearStreams)
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
		if err := p.init.Initialize(ctx, m, unit); err != nil {
			return err
		}
		for _, conn := range m.Connections() {
			if conn.Source != name {
				continue
			}
			if err := p.init.PropagateState(ctx, m, conn); err != nil {
				p.log.Warn().Str("connection", conn.Name).Err(err).
					Msg("state propagation failed during reinitialization")
			}
		}
	}
	return nil
}

func (p *HygienePipeline) runPreSolveDiagnostics(m Model) (StageResult, bool) {
	started := time.Now()
	report, err := p.diag.PreSolve(m)
	if err != nil {
		sr := stageResult(StagePreSolveDiagnostics, started, false, "pre-solve diagnostics failed")
		sr.Errors = append(sr.Errors, err.Error())
		p.record(sr)
		return sr, false
	}
	sr := stageResult(StagePreSolveDiagnostics, started, true, "pre-solve diagnostics complete")
	sr.Warnings = append(sr.Warnings, report.Warnings...)
	p.record(sr)
	return sr, true
}

func (p *HygienePipeline) runSolve(ctx context.Context, m Model) (bool, SolveReport, map[string]interface{}) {
	started := time.Now()
	report, err := p.solver.Solve(ctx, m, p.config.SolverOptions)
	if err != nil {
		sr := stageResult(StageSolving, started, false, "solver invocation failed")
		sr.Errors = append(sr.Errors, err.Error())
		p.record(sr)
		return false, SolveReport{SolverMessage: err.Error()}, nil
	}

	details := map[string]interface{}{
		"termination_condition": report.TerminationCondition,
		"duration":              report.Duration.String(),
	}
	if report.Iterations > 0 {
		details["iterations"] = report.Iterations
	}
	if !report.Optimal {
		sr := stageResult(StageSolving, started, false,
			fmt.Sprintf("solver terminated with %s", report.TerminationCondition))
		sr.Errors = append(sr.Errors, report.SolverMessage)
		sr.Details = details
		p.record(sr)
		return false, report, details
	}

	sr := stageResult(StageSolving, started, true, "solve succeeded")
	sr.Details = details
	p.record(sr)
	return true, report, details
}

// runRelaxedSolve hands the failed solve to the failure analyzer and
// recovery executor: the failure is classified, the suggested automated
// actions are applied in priority order with retried solves capped at
// the configured attempt limit, and the full audit trail lands in the
// stage result. A solution found this way is reported with a warning
// since the recovery actions may have relaxed bounds.
func (p *HygienePipeline) runRelaxedSolve(ctx context.Context, m Model, report SolveReport) bool {
	started := time.Now()

	analysis := p.analyzer.Analyze(m, report)
	if p.config.RelaxationFactor > 0 {
		for i := range analysis.Actions {
			if analysis.Actions[i].Strategy != StrategyBoundRelaxation {
				continue
			}
			if analysis.Actions[i].Parameters == nil {
				analysis.Actions[i].Parameters = make(map[string]interface{})
			}
			analysis.Actions[i].Parameters["relaxation_factor"] = p.config.RelaxationFactor
		}
	}

	recovery := p.executor.Execute(ctx, m, analysis, p.config.SolverOptions, p.config.MaxRecoveryAttempts)

	details := map[string]interface{}{
		"failure_type": string(analysis.Type),
		"attempts":     recovery.Attempts,
	}
	if !recovery.Recovered {
		sr := stageResult(StageRelaxedSolve, started, false, recovery.Message)
		for _, attempt := range recovery.Attempts {
			sr.Errors = append(sr.Errors,
				fmt.Sprintf("%s: %s", attempt.Action.Strategy, attempt.Message))
		}
		sr.Details = details
		p.record(sr)
		return false
	}

	sr := stageResult(StageRelaxedSolve, started, true, recovery.Message)
	sr.Warnings = append(sr.Warnings,
		fmt.Sprintf("solution obtained through recovery (%s); values may violate original bounds",
			analysis.Type))
	for _, attempt := range recovery.Attempts {
		sr.Warnings = append(sr.Warnings,
			fmt.Sprintf("recovery action %s: %s", attempt.Action.Strategy, attempt.Message))
	}
	sr.Details = details
	p.record(sr)
	return true
}

func (p *HygienePipeline) runPostSolveDiagnostics(m Model) (StageResult, bool) {
	started := time.Now()
	report, err := p.diag.PostSolve(m)
	if err != nil {
		sr := stageResult(StagePostSolveDiagnostics, started, false, "post-solve diagnostics failed")
		sr.Errors = append(sr.Errors, err.Error())
		p.record(sr)
		return sr, false
	}
	if !report.Healthy {
		sr := stageResult(StagePostSolveDiagnostics, started, false,
			fmt.Sprintf("post-solve issues: %d residual(s), %d bound violation(s)",
				len(report.Residuals), len(report.BoundViolations)))
		sr.Errors = append(sr.Errors, report.Warnings...)
		sr.Details = map[string]interface{}{
			"residuals":        report.Residuals,
			"bound_violations": report.BoundViolations,
		}
		p.record(sr)
		return sr, false
	}
	sr := stageResult(StagePostSolveDiagnostics, started, true, "post-solve diagnostics passed")
	p.record(sr)
	return sr, true
}

func (p *HygienePipeline) lastResult() StageResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return StageResult{Stage: StageIdle}
	}
	return p.history[len(p.history)-1]
}

func (p *HygienePipeline) failed(sr StageResult) PipelineResult {
	msg := fmt.Sprintf("pipeline failed at %s: %s", sr.Stage, sr.Message)
	return p.aggregate(false, StageFailed, msg)
}

func (p *HygienePipeline) aggregate(success bool, state Stage, message string) PipelineResult {
	history := p.History()
	result := PipelineResult{
		Success: success,
		State:   state,
		Message: message,
		History: history,
	}
	for _, sr := range history {
		result.Warnings = append(result.Warnings, sr.Warnings...)
		result.Errors = append(result.Errors, sr.Errors...)
	}
	return result
}

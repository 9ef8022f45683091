package engine

import (
	"time"
)

// Stage identifies a phase of the solve pipeline.
type Stage string

const (
	// StageIdle is the initial state before any pipeline work starts.
	StageIdle Stage = "idle"

	// StageDOFCheck is the degrees-of-freedom verification stage.
	StageDOFCheck Stage = "dof_check"

	// StageScaling is the variable and constraint scaling stage.
	StageScaling Stage = "scaling"

	// StageInitialization is the sequential unit initialization stage.
	StageInitialization Stage = "initialization"

	// StagePreSolveDiagnostics is the structural diagnostics stage run
	// before the main solve.
	StagePreSolveDiagnostics Stage = "pre_solve_diagnostics"

	// StageSolving is the main solver invocation stage.
	StageSolving Stage = "solving"

	// StageRelaxedSolve is the optional relaxed re-solve attempted after
	// a failed main solve.
	StageRelaxedSolve Stage = "relaxed_solve"

	// StagePostSolveDiagnostics is the numerical diagnostics stage run
	// after a successful solve.
	StagePostSolveDiagnostics Stage = "post_solve_diagnostics"

	// StageCompleted is the terminal success state.
	StageCompleted Stage = "completed"

	// StageFailed is the terminal failure state.
	StageFailed Stage = "failed"
)

// StageResult records the outcome of one pipeline stage transition.
// The pipeline history is append-only; the last entry determines the
// current state.
type StageResult struct {
	// Stage is the stage this result belongs to.
	Stage Stage `json:"stage"`

	// Success indicates whether the stage completed successfully.
	Success bool `json:"success"`

	// Message is a human-readable summary of the stage outcome.
	Message string `json:"message"`

	// StartedAt is when the stage started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the stage completed.
	CompletedAt time.Time `json:"completed_at"`

	// Warnings lists non-fatal issues observed during the stage.
	Warnings []string `json:"warnings,omitempty"`

	// Errors lists error messages produced by the stage.
	Errors []string `json:"errors,omitempty"`

	// Details contains stage-specific result data.
	Details map[string]interface{} `json:"details,omitempty"`
}

// PipelineConfig controls pipeline stage behavior.
type PipelineConfig struct {
	// AllowOverspecified permits the DOF check to pass with negative
	// degrees of freedom. Underspecification always fails.
	AllowOverspecified bool `json:"allow_overspecified" yaml:"allow_overspecified"`

	// AutoScale enables automatic scaling factor calculation during the
	// scaling stage.
	AutoScale bool `json:"auto_scale" yaml:"auto_scale"`

	// ReportScalingIssues promotes scaling problems to stage warnings.
	ReportScalingIssues bool `json:"report_scaling_issues" yaml:"report_scaling_issues"`

	// TearStreams lists connection names whose edges are removed from the
	// precedence graph before ordering, breaking recycle cycles.
	TearStreams []string `json:"tear_streams,omitempty" yaml:"tear_streams,omitempty"`

	// SolverOptions are passed through to the solver unchanged.
	SolverOptions map[string]interface{} `json:"solver_options,omitempty" yaml:"solver_options,omitempty"`

	// EnableRelaxedSolve attempts a bound-relaxed re-solve when the main
	// solve fails.
	EnableRelaxedSolve bool `json:"enable_relaxed_solve" yaml:"enable_relaxed_solve"`

	// RelaxationFactor is the fraction of each variable's bound range used
	// to widen its bounds during a relaxed solve.
	RelaxationFactor float64 `json:"relaxation_factor" yaml:"relaxation_factor"`

	// MaxRecoveryAttempts caps the number of recovery retry solves.
	MaxRecoveryAttempts int `json:"max_recovery_attempts" yaml:"max_recovery_attempts"`
}

// DefaultPipelineConfig returns the standard pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		AutoScale:           true,
		ReportScalingIssues: true,
		EnableRelaxedSolve:  false,
		RelaxationFactor:    0.1,
		MaxRecoveryAttempts: 3,
	}
}

// PipelineResult is the aggregate outcome of a full pipeline run.
type PipelineResult struct {
	// Success indicates whether the full pipeline completed.
	Success bool `json:"success"`

	// State is the pipeline state when the run ended.
	State Stage `json:"state"`

	// Message summarizes the overall outcome.
	Message string `json:"message"`

	// History is the ordered list of stage results.
	History []StageResult `json:"history"`

	// Warnings aggregates warnings across all stages.
	Warnings []string `json:"warnings,omitempty"`

	// Errors aggregates errors across all stages.
	Errors []string `json:"errors,omitempty"`

	// Details contains run-level data such as solver termination info.
	Details map[string]interface{} `json:"details,omitempty"`
}

// DOFStatus classifies a degrees-of-freedom check outcome.
type DOFStatus string

const (
	// DOFReady means the model has exactly zero degrees of freedom.
	DOFReady DOFStatus = "ready"

	// DOFUnderspecified means the model has positive degrees of freedom.
	DOFUnderspecified DOFStatus = "underspecified"

	// DOFOverspecified means the model has negative degrees of freedom.
	DOFOverspecified DOFStatus = "overspecified"

	// DOFError means the degrees of freedom could not be computed.
	DOFError DOFStatus = "error"
)

// DOFReport summarizes a degrees-of-freedom check.
type DOFReport struct {
	// Status is the DOF classification.
	Status DOFStatus `json:"status"`

	// DegreesOfFreedom is free variables minus active equality constraints.
	DegreesOfFreedom int `json:"degrees_of_freedom"`

	// FreeVariables is the number of unfixed variables.
	FreeVariables int `json:"free_variables"`

	// ActiveConstraints is the number of active equality constraints.
	ActiveConstraints int `json:"active_constraints"`

	// Suggestions lists candidate variables to fix or unfix.
	Suggestions []string `json:"suggestions,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message"`
}

// ScalingReport summarizes the scaling stage.
type ScalingReport struct {
	// Applied indicates whether automatic scaling was applied.
	Applied bool `json:"applied"`

	// UnscaledVariables is the number of variables without scaling factors.
	UnscaledVariables int `json:"unscaled_variables"`

	// BadlyScaledVariables is the number of variables with extreme
	// scaled magnitudes.
	BadlyScaledVariables int `json:"badly_scaled_variables"`

	// UnscaledConstraints is the number of constraints without scaling
	// factors.
	UnscaledConstraints int `json:"unscaled_constraints"`

	// Issues lists individual scaling problems, capped for readability.
	Issues []string `json:"issues,omitempty"`
}

// ConstraintResidual records a constraint whose residual exceeds the
// diagnostic threshold.
type ConstraintResidual struct {
	// Name is the fully qualified constraint name.
	Name string `json:"name"`

	// Residual is the absolute residual value.
	Residual float64 `json:"residual"`
}

// BoundViolation records a variable at or beyond one of its bounds.
type BoundViolation struct {
	// Name is the fully qualified variable name.
	Name string `json:"name"`

	// Value is the current variable value.
	Value float64 `json:"value"`

	// Bound is the violated bound value.
	Bound float64 `json:"bound"`

	// Kind is "lower" or "upper".
	Kind string `json:"kind"`
}

// DiagnosticsReport summarizes structural or numerical model diagnostics.
type DiagnosticsReport struct {
	// Structural indicates whether this is a pre-solve structural report.
	Structural bool `json:"structural"`

	// Residuals lists constraints with large residuals, sorted descending
	// by magnitude and capped.
	Residuals []ConstraintResidual `json:"residuals,omitempty"`

	// BoundViolations lists variables at or beyond their bounds.
	BoundViolations []BoundViolation `json:"bound_violations,omitempty"`

	// Warnings lists diagnostic warnings.
	Warnings []string `json:"warnings,omitempty"`

	// Healthy indicates no issues above threshold were found.
	Healthy bool `json:"healthy"`
}

// SolveReport is the solver invocation outcome as seen by the pipeline.
type SolveReport struct {
	// Optimal indicates the solver reported an optimal termination.
	Optimal bool `json:"optimal"`

	// TerminationCondition is the solver's termination condition string.
	TerminationCondition string `json:"termination_condition"`

	// SolverMessage is the raw solver message text, preserved verbatim.
	SolverMessage string `json:"solver_message,omitempty"`

	// Iterations is the iteration count if the solver reports one.
	Iterations int `json:"iterations,omitempty"`

	// Duration is the wall-clock solve time.
	Duration time.Duration `json:"duration"`
}

// FailureType classifies a solver failure.
type FailureType string

const (
	// FailureInfeasible indicates the solver proved infeasibility.
	FailureInfeasible FailureType = "infeasible"

	// FailureLocallyInfeasible indicates a local-solver infeasible point.
	FailureLocallyInfeasible FailureType = "locally_infeasible"

	// FailureMaxIterations indicates the iteration limit was reached.
	FailureMaxIterations FailureType = "max_iterations"

	// FailureNumericalError indicates evaluation or conditioning problems.
	FailureNumericalError FailureType = "numerical_error"

	// FailureUnbounded indicates an unbounded problem.
	FailureUnbounded FailureType = "unbounded"

	// FailureOther is the fallback classification.
	FailureOther FailureType = "other"
)

// RecoveryStrategy identifies a recovery technique.
type RecoveryStrategy string

const (
	// StrategyBoundRelaxation widens variable bounds by a fraction of
	// their range.
	StrategyBoundRelaxation RecoveryStrategy = "bound_relaxation"

	// StrategyPenaltyRelaxation reformulates hard constraints with
	// penalty terms.
	StrategyPenaltyRelaxation RecoveryStrategy = "penalty_relaxation"

	// StrategyConstraintRelaxation deactivates or loosens constraints.
	StrategyConstraintRelaxation RecoveryStrategy = "constraint_relaxation"

	// StrategyScalingAdjustment recalculates scaling factors.
	StrategyScalingAdjustment RecoveryStrategy = "scaling_adjustment"

	// StrategyInitializationRetry re-runs initialization from a fresh
	// starting point.
	StrategyInitializationRetry RecoveryStrategy = "initialization_retry"

	// StrategySolverOptionChange adjusts solver options such as tolerances
	// or iteration limits.
	StrategySolverOptionChange RecoveryStrategy = "solver_option_change"

	// StrategyManualIntervention signals that automated recovery cannot
	// proceed and a human must inspect the model.
	StrategyManualIntervention RecoveryStrategy = "manual_intervention"
)

// RecoveryAction is a single suggested or executed recovery step.
type RecoveryAction struct {
	// Strategy is the recovery technique to apply.
	Strategy RecoveryStrategy `json:"strategy"`

	// Description explains what the action does.
	Description string `json:"description"`

	// Priority orders actions; lower values run first.
	Priority int `json:"priority"`

	// Parameters carries strategy-specific settings.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Automated indicates the executor can apply this action without
	// human involvement.
	Automated bool `json:"automated"`
}

// FailureAnalysis is the analyzer's report for a failed solve.
type FailureAnalysis struct {
	// Type is the failure classification.
	Type FailureType `json:"type"`

	// SolverMessage is the raw solver message the classification was
	// derived from.
	SolverMessage string `json:"solver_message"`

	// LikelyCauses lists plausible causes for this failure type.
	LikelyCauses []string `json:"likely_causes"`

	// Actions lists suggested recovery actions in priority order.
	Actions []RecoveryAction `json:"actions"`

	// ContextHints lists model-specific observations, such as residual
	// names that match known problem areas.
	ContextHints []string `json:"context_hints,omitempty"`
}

// RecoveryAttempt records one executed recovery action and its result.
type RecoveryAttempt struct {
	// Action is the action that was applied.
	Action RecoveryAction `json:"action"`

	// Applied indicates the action was actually applied to the model.
	Applied bool `json:"applied"`

	// Solved indicates the follow-up solve succeeded.
	Solved bool `json:"solved"`

	// Message describes the attempt outcome.
	Message string `json:"message"`
}

// RecoveryResult is the aggregate outcome of a recovery session.
type RecoveryResult struct {
	// Recovered indicates a retried solve succeeded.
	Recovered bool `json:"recovered"`

	// Analysis is the failure analysis that drove the session.
	Analysis FailureAnalysis `json:"analysis"`

	// Attempts is the audit trail of actions taken, in order.
	Attempts []RecoveryAttempt `json:"attempts"`

	// Message summarizes the session.
	Message string `json:"message"`
}

// UnitNode is a unit operation participating in ordering.
type UnitNode struct {
	// Name is the unit's flowsheet-unique name.
	Name string `json:"name"`

	// InitMethod is the initialization routine variant for this unit.
	InitMethod InitMethod `json:"init_method"`
}

// Connection is a directed material or energy stream between two units.
type Connection struct {
	// Name is the connection's flowsheet-unique name.
	Name string `json:"name"`

	// Source is the upstream unit name.
	Source string `json:"source"`

	// Dest is the downstream unit name.
	Dest string `json:"dest"`
}

// InitMethod identifies which initialization routine variant a unit uses.
type InitMethod string

const (
	// InitStandard uses the common initialization routine.
	InitStandard InitMethod = "standard"

	// InitBuildSpecific uses a routine specific to the unit's build.
	InitBuildSpecific InitMethod = "build_specific"

	// InitCustom uses a hand-written routine registered for the unit type.
	InitCustom InitMethod = "custom"

	// InitNone skips initialization for the unit.
	InitNone InitMethod = "none"
)

// OrderMode selects the ordering algorithm.
type OrderMode string

const (
	// OrderModePlanning uses topological ordering with explicit tear
	// edges to break cycles.
	OrderModePlanning OrderMode = "planning"

	// OrderModeBound delegates ordering to the model's decomposer, which
	// selects tears itself.
	OrderModeBound OrderMode = "bound"
)

// OrderResult is the outcome of sequencing units for initialization.
type OrderResult struct {
	// Order is the unit names in initialization order.
	Order []string `json:"order"`

	// Mode is the ordering mode that produced the result.
	Mode OrderMode `json:"mode"`

	// TearsApplied lists the connection names removed before ordering.
	TearsApplied []string `json:"tears_applied,omitempty"`
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// failureIndicators maps substring markers in solver messages to a
// failure classification. Entries are checked in order; the locally
// infeasible markers must come before the plain infeasible ones.
var failureIndicators = []struct {
	failure FailureType
	markers []string
}{
	{FailureLocallyInfeasible, []string{"locally infeasible", "locallyinfeasible", "restoration failed"}},
	{FailureInfeasible, []string{"infeasible", "no feasible solution"}},
	{FailureMaxIterations, []string{"iteration limit", "maxiterations", "max iterations", "too few iterations"}},
	{FailureNumericalError, []string{"numerical", "evaluation error", "overflow", "nan", "singular"}},
	{FailureUnbounded, []string{"unbounded"}},
}

// likelyCauses lists plausible causes per failure type, most common
// first.
var likelyCauses = map[FailureType][]string{
	FailureInfeasible: {
		"conflicting fixed variable values",
		"variable bounds exclude the feasible region",
		"inconsistent specifications across connected units",
	},
	FailureLocallyInfeasible: {
		"poor initial point far from the feasible region",
		"tight bounds near the initial values",
		"badly scaled constraints distorting the restoration phase",
	},
	FailureMaxIterations: {
		"poor scaling slowing convergence",
		"initial point far from the solution",
		"iteration limit too low for problem size",
	},
	FailureNumericalError: {
		"expression evaluation outside its domain, such as log of a non-positive value",
		"extreme variable magnitudes from missing scaling factors",
		"division by a variable passing through zero",
	},
	FailureUnbounded: {
		"missing bound on a variable in the objective",
		"objective direction inconsistent with the model",
	},
	FailureOther: {
		"unrecognized solver termination, inspect the solver log",
	},
}

// defaultActions lists the recovery actions per failure type in
// priority order.
var defaultActions = map[FailureType][]RecoveryAction{
	FailureInfeasible: {
		{Strategy: StrategyBoundRelaxation, Priority: 1, Automated: true,
			Description: "widen variable bounds by a fraction of their range",
			Parameters:  map[string]interface{}{"relaxation_factor": 0.1}},
		{Strategy: StrategyConstraintRelaxation, Priority: 2, Automated: false,
			Description: "deactivate or loosen the constraints with the largest residuals"},
		{Strategy: StrategyManualIntervention, Priority: 3, Automated: false,
			Description: "review fixed values and specifications for conflicts"},
	},
	FailureLocallyInfeasible: {
		{Strategy: StrategyInitializationRetry, Priority: 1, Automated: true,
			Description: "re-run sequential initialization from a fresh starting point"},
		{Strategy: StrategyBoundRelaxation, Priority: 2, Automated: true,
			Description: "widen variable bounds by a fraction of their range",
			Parameters:  map[string]interface{}{"relaxation_factor": 0.1}},
		{Strategy: StrategyScalingAdjustment, Priority: 3, Automated: true,
			Description: "recalculate scaling factors before retrying"},
	},
	FailureMaxIterations: {
		{Strategy: StrategySolverOptionChange, Priority: 1, Automated: true,
			Description: "raise the iteration limit",
			Parameters:  map[string]interface{}{"max_iter": 3000}},
		{Strategy: StrategyScalingAdjustment, Priority: 2, Automated: true,
			Description: "recalculate scaling factors before retrying"},
		{Strategy: StrategyInitializationRetry, Priority: 3, Automated: true,
			Description: "re-run sequential initialization from a fresh starting point"},
	},
	FailureNumericalError: {
		{Strategy: StrategyScalingAdjustment, Priority: 1, Automated: true,
			Description: "recalculate scaling factors before retrying"},
		{Strategy: StrategyBoundRelaxation, Priority: 2, Automated: true,
			Description: "widen variable bounds away from expression domain edges",
			Parameters:  map[string]interface{}{"relaxation_factor": 0.1}},
		{Strategy: StrategyManualIntervention, Priority: 3, Automated: false,
			Description: "inspect expressions for domain violations at the failing point"},
	},
	FailureUnbounded: {
		{Strategy: StrategyManualIntervention, Priority: 1, Automated: false,
			Description: "add missing bounds on objective variables"},
	},
	FailureOther: {
		{Strategy: StrategySolverOptionChange, Priority: 1, Automated: true,
			Description: "retry with increased output verbosity for a better message",
			Parameters:  map[string]interface{}{"tee": true}},
		{Strategy: StrategyManualIntervention, Priority: 2, Automated: false,
			Description: "inspect the full solver log"},
	},
}

// contextHints maps residual-name keywords to model-specific guidance.
// A matching hint injects a manual-intervention action ahead of the
// defaults, since these areas respond poorly to blind relaxation.
var contextHints = []struct {
	keywords []string
	hint     string
}{
	{[]string{"flux", "permeate"}, "membrane flux constraints are failing; check driving-force specifications and membrane area"},
	{[]string{"solubility"}, "solubility constraints are failing; check composition specifications against the solubility model's valid range"},
}

// FailureAnalyzer classifies solver failures and suggests recovery
// actions.
type FailureAnalyzer struct {
	log   zerolog.Logger
	intro Introspector
}

// NewFailureAnalyzer creates a failure analyzer.
func NewFailureAnalyzer(log zerolog.Logger, intro Introspector) *FailureAnalyzer {
	return &FailureAnalyzer{
		log:   log.With().Str("component", "failure_analyzer").Logger(),
		intro: intro,
	}
}

// Classify maps a solver termination message to a failure type by
// substring matching. Unrecognized messages classify as FailureOther.
func (a *FailureAnalyzer) Classify(solverMessage string) FailureType {
	msg := strings.ToLower(solverMessage)
	for _, entry := range failureIndicators {
		for _, marker := range entry.markers {
			if strings.Contains(msg, marker) {
				return entry.failure
			}
		}
	}
	return FailureOther
}

// Analyze builds a full failure report: classification, likely causes,
// and prioritized recovery actions. When the model's largest residuals
// match known problem areas, a model-specific manual action is placed
// ahead of the defaults.
func (a *FailureAnalyzer) Analyze(m Model, report SolveReport) FailureAnalysis {
	failure := a.Classify(report.TerminationCondition + " " + report.SolverMessage)
	analysis := FailureAnalysis{
		Type:          failure,
		SolverMessage: report.SolverMessage,
		LikelyCauses:  append([]string(nil), likelyCauses[failure]...),
		Actions:       append([]RecoveryAction(nil), defaultActions[failure]...),
	}

	if m != nil {
		residuals, err := a.intro.Residuals(m, residualThreshold, reportLimit)
		if err != nil {
			a.log.Warn().Err(err).Msg("residual survey failed during failure analysis")
		} else {
			a.addContextActions(&analysis, residuals)
		}
	}

	a.log.Info().Str("failure_type", string(failure)).
		Int("actions", len(analysis.Actions)).Msg("failure analyzed")
	return analysis
}

func (a *FailureAnalyzer) addContextActions(analysis *FailureAnalysis, residuals []ConstraintResidual) {
	for _, entry := range contextHints {
		matched := false
		for _, res := range residuals {
			name := strings.ToLower(res.Name)
			for _, kw := range entry.keywords {
				if strings.Contains(name, kw) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			continue
		}
		analysis.ContextHints = append(analysis.ContextHints, entry.hint)
		analysis.Actions = append([]RecoveryAction{{
			Strategy:    StrategyManualIntervention,
			Priority:    0,
			Automated:   false,
			Description: entry.hint,
		}}, analysis.Actions...)
	}
}

// RecoveryExecutor applies automated recovery actions and retries the
// solve, keeping an audit trail of everything it did.
type RecoveryExecutor struct {
	log    zerolog.Logger
	intro  Introspector
	solver Solver

	// Reinitialize re-runs sequential initialization for the
	// initialization-retry strategy. Optional; the strategy is skipped
	// when nil.
	Reinitialize func(ctx context.Context, m Model) error
}

// NewRecoveryExecutor creates a recovery executor.
func NewRecoveryExecutor(log zerolog.Logger, intro Introspector, solver Solver) *RecoveryExecutor {
	return &RecoveryExecutor{
		log:    log.With().Str("component", "recovery").Logger(),
		intro:  intro,
		solver: solver,
	}
}

// Execute works through the analysis's automated actions in priority
// order, applying each and retrying the solve, until a solve succeeds
// or maxAttempts retried solves have failed. Non-automated actions are
// recorded in the audit trail but never applied.
func (e *RecoveryExecutor) Execute(ctx context.Context, m Model, analysis FailureAnalysis, options map[string]interface{}, maxAttempts int) RecoveryResult {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	result := RecoveryResult{Analysis: analysis}
	opts := cloneOptions(options)
	attempts := 0

	for _, action := range analysis.Actions {
		if attempts >= maxAttempts {
			break
		}
		if !action.Automated {
			result.Attempts = append(result.Attempts, RecoveryAttempt{
				Action:  action,
				Applied: false,
				Message: "requires manual intervention, not applied",
			})
			continue
		}

		if err := e.apply(ctx, m, action, opts); err != nil {
			e.log.Warn().Err(err).Str("strategy", string(action.Strategy)).
				Msg("recovery action could not be applied")
			result.Attempts = append(result.Attempts, RecoveryAttempt{
				Action:  action,
				Applied: false,
				Message: fmt.Sprintf("action failed to apply: %v", err),
			})
			continue
		}

		attempts++
		report, err := e.solver.Solve(ctx, m, opts)
		if err != nil {
			result.Attempts = append(result.Attempts, RecoveryAttempt{
				Action:  action,
				Applied: true,
				Message: fmt.Sprintf("retried solve errored: %v", err),
			})
			continue
		}
		attempt := RecoveryAttempt{Action: action, Applied: true, Solved: report.Optimal}
		if report.Optimal {
			attempt.Message = "retried solve succeeded"
			result.Attempts = append(result.Attempts, attempt)
			result.Recovered = true
			result.Message = fmt.Sprintf("recovered after %d attempt(s) using %s", attempts, action.Strategy)
			e.log.Info().Str("strategy", string(action.Strategy)).Int("attempts", attempts).
				Msg("recovery succeeded")
			return result
		}
		attempt.Message = fmt.Sprintf("retried solve still failing: %s", report.TerminationCondition)
		result.Attempts = append(result.Attempts, attempt)
	}

	result.Message = fmt.Sprintf("recovery exhausted after %d retried solve(s)", attempts)
	e.log.Warn().Int("attempts", attempts).Msg("recovery exhausted")
	return result
}

func (e *RecoveryExecutor) apply(ctx context.Context, m Model, action RecoveryAction, opts map[string]interface{}) error {
	switch action.Strategy {
	case StrategyBoundRelaxation:
		factor := 0.1
		if f, ok := action.Parameters["relaxation_factor"].(float64); ok {
			factor = f
		}
		relaxed := RelaxBounds(e.intro.Variables(m), factor)
		e.log.Info().Int("variables", relaxed).Float64("factor", factor).Msg("bounds relaxed")
		return nil
	case StrategyScalingAdjustment:
		return e.intro.ApplyScaling(m)
	case StrategySolverOptionChange:
		for k, v := range action.Parameters {
			opts[k] = v
		}
		return nil
	case StrategyInitializationRetry:
		if e.Reinitialize == nil {
			return fmt.Errorf("no reinitializer configured")
		}
		return e.Reinitialize(ctx, m)
	default:
		return fmt.Errorf("strategy %s is not automated", action.Strategy)
	}
}

// RelaxBounds widens every variable that has both bounds by factor
// times its range on each side: a variable bounded [0, 10] with factor
// 0.1 becomes [-1, 11]. Variables missing a bound are left alone.
// Returns the number of variables relaxed.
func RelaxBounds(vars []Variable, factor float64) int {
	count := 0
	for _, v := range vars {
		lower, upper, hasLower, hasUpper := v.Bounds()
		if !hasLower || !hasUpper {
			continue
		}
		span := upper - lower
		if span <= 0 {
			continue
		}
		v.SetBounds(lower-factor*span, upper+factor*span)
		count++
	}
	return count
}

func cloneOptions(options map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(options))
	for k, v := range options {
		out[k] = v
	}
	return out
}

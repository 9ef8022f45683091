package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestFailureAnalyzer_Classify(t *testing.T) {
	a := NewFailureAnalyzer(zerolog.Nop(), &fakeIntrospector{})

	cases := []struct {
		message string
		want    FailureType
	}{
		{"Problem proven infeasible", FailureInfeasible},
		{"No feasible solution found", FailureInfeasible},
		{"Converged to a locally infeasible point", FailureLocallyInfeasible},
		{"Restoration failed in phase 2", FailureLocallyInfeasible},
		{"Iteration limit reached", FailureMaxIterations},
		{"maxIterations exceeded", FailureMaxIterations},
		{"Numerical difficulties encountered", FailureNumericalError},
		{"Function evaluation error at x=0", FailureNumericalError},
		{"Floating point overflow in constraint body", FailureNumericalError},
		{"Problem is unbounded", FailureUnbounded},
		{"Mysterious termination", FailureOther},
		{"", FailureOther},
	}
	for _, c := range cases {
		if got := a.Classify(c.message); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.message, got, c.want)
		}
	}
}

func TestFailureAnalyzer_Analyze_DefaultActions(t *testing.T) {
	a := NewFailureAnalyzer(zerolog.Nop(), &fakeIntrospector{})

	analysis := a.Analyze(newFakeModel(), failedReport("infeasible", "Problem proven infeasible"))

	if analysis.Type != FailureInfeasible {
		t.Fatalf("Expected infeasible classification, got %s", analysis.Type)
	}
	if len(analysis.LikelyCauses) == 0 {
		t.Error("Expected likely causes")
	}
	if len(analysis.Actions) == 0 {
		t.Fatal("Expected recovery actions")
	}
	if analysis.Actions[0].Strategy != StrategyBoundRelaxation {
		t.Errorf("Expected bound relaxation first, got %s", analysis.Actions[0].Strategy)
	}
	for i := 1; i < len(analysis.Actions); i++ {
		if analysis.Actions[i].Priority < analysis.Actions[i-1].Priority {
			t.Errorf("Actions out of priority order at %d", i)
		}
	}
}

func TestFailureAnalyzer_Analyze_ContextHints(t *testing.T) {
	intro := &fakeIntrospector{residuals: []ConstraintResidual{
		{Name: "fs.ro.water_flux_constraint[0]", Residual: 3.2e-2},
	}}
	a := NewFailureAnalyzer(zerolog.Nop(), intro)

	analysis := a.Analyze(newFakeModel(), failedReport("infeasible", "Problem proven infeasible"))

	if len(analysis.ContextHints) == 0 {
		t.Fatal("Expected a context hint for flux residuals")
	}
	first := analysis.Actions[0]
	if first.Strategy != StrategyManualIntervention || first.Priority != 0 {
		t.Errorf("Expected injected manual action first, got %+v", first)
	}
}

func TestRecoveryExecutor_BoundedAttempts(t *testing.T) {
	// Every retried solve fails; the executor must stop at the cap even
	// with more automated actions available.
	analysis := FailureAnalysis{
		Type: FailureLocallyInfeasible,
		Actions: []RecoveryAction{
			{Strategy: StrategyScalingAdjustment, Priority: 1, Automated: true},
			{Strategy: StrategyBoundRelaxation, Priority: 2, Automated: true},
			{Strategy: StrategySolverOptionChange, Priority: 3, Automated: true,
				Parameters: map[string]interface{}{"max_iter": 3000}},
			{Strategy: StrategyScalingAdjustment, Priority: 4, Automated: true},
			{Strategy: StrategyScalingAdjustment, Priority: 5, Automated: true},
		},
	}
	solver := &fakeSolver{reports: []SolveReport{failedReport("infeasible", "still infeasible")}}
	e := NewRecoveryExecutor(zerolog.Nop(), &fakeIntrospector{}, solver)

	result := e.Execute(context.Background(), newFakeModel(), analysis, nil, 3)

	if result.Recovered {
		t.Fatal("Expected recovery to fail")
	}
	if solver.calls != 3 {
		t.Errorf("Expected exactly 3 retried solves, got %d", solver.calls)
	}
}

func TestRecoveryExecutor_RecoversAndStops(t *testing.T) {
	analysis := FailureAnalysis{
		Type: FailureMaxIterations,
		Actions: []RecoveryAction{
			{Strategy: StrategySolverOptionChange, Priority: 1, Automated: true,
				Parameters: map[string]interface{}{"max_iter": 3000}},
			{Strategy: StrategyScalingAdjustment, Priority: 2, Automated: true},
		},
	}
	solver := &fakeSolver{reports: []SolveReport{
		failedReport("maxIterations", "iteration limit"),
		optimalReport(),
	}}
	e := NewRecoveryExecutor(zerolog.Nop(), &fakeIntrospector{}, solver)

	result := e.Execute(context.Background(), newFakeModel(), analysis, nil, 3)

	if !result.Recovered {
		t.Fatalf("Expected recovery, got: %s", result.Message)
	}
	if solver.calls != 2 {
		t.Errorf("Expected 2 solves, got %d", solver.calls)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(result.Attempts))
	}
	if !result.Attempts[1].Solved {
		t.Error("Expected final attempt marked solved")
	}
}

func TestRecoveryExecutor_SkipsManualActions(t *testing.T) {
	analysis := FailureAnalysis{
		Type: FailureUnbounded,
		Actions: []RecoveryAction{
			{Strategy: StrategyManualIntervention, Priority: 1, Automated: false},
		},
	}
	solver := &fakeSolver{}
	e := NewRecoveryExecutor(zerolog.Nop(), &fakeIntrospector{}, solver)

	result := e.Execute(context.Background(), newFakeModel(), analysis, nil, 3)

	if result.Recovered {
		t.Fatal("Expected no recovery from manual-only actions")
	}
	if solver.calls != 0 {
		t.Errorf("Expected no solves, got %d", solver.calls)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Applied {
		t.Errorf("Expected one unapplied audit entry, got %+v", result.Attempts)
	}
}

func TestRecoveryExecutor_OptionChangeMergesWithoutMutating(t *testing.T) {
	analysis := FailureAnalysis{
		Type: FailureMaxIterations,
		Actions: []RecoveryAction{
			{Strategy: StrategySolverOptionChange, Priority: 1, Automated: true,
				Parameters: map[string]interface{}{"max_iter": 3000}},
		},
	}
	solver := &fakeSolver{reports: []SolveReport{optimalReport()}}
	e := NewRecoveryExecutor(zerolog.Nop(), &fakeIntrospector{}, solver)
	base := map[string]interface{}{"tol": 1e-8}

	result := e.Execute(context.Background(), newFakeModel(), analysis, base, 3)

	if !result.Recovered {
		t.Fatalf("Expected recovery, got: %s", result.Message)
	}
	if _, ok := base["max_iter"]; ok {
		t.Error("Expected caller options to remain untouched")
	}
	seen := solver.seen[0]
	if seen["max_iter"] != 3000 || seen["tol"] != 1e-8 {
		t.Errorf("Expected merged options in retried solve, got %v", seen)
	}
}

func TestRecoveryExecutor_BoundRelaxationUsesFactor(t *testing.T) {
	v := newFakeVar("x").withBounds(0, 10)
	intro := &fakeIntrospector{vars: []Variable{v}}
	analysis := FailureAnalysis{
		Type: FailureInfeasible,
		Actions: []RecoveryAction{
			{Strategy: StrategyBoundRelaxation, Priority: 1, Automated: true,
				Parameters: map[string]interface{}{"relaxation_factor": 0.1}},
		},
	}
	solver := &fakeSolver{reports: []SolveReport{optimalReport()}}
	e := NewRecoveryExecutor(zerolog.Nop(), intro, solver)

	e.Execute(context.Background(), newFakeModel(), analysis, nil, 3)

	lower, upper, _, _ := v.Bounds()
	if lower != -1 || upper != 11 {
		t.Errorf("Expected bounds [-1, 11], got [%v, %v]", lower, upper)
	}
}

func TestRelaxBounds(t *testing.T) {
	bounded := newFakeVar("a").withBounds(0, 10)
	halfBounded := newFakeVar("b")
	halfBounded.lower, halfBounded.hasLower = 0, true

	n := RelaxBounds([]Variable{bounded, halfBounded}, 0.1)

	if n != 1 {
		t.Errorf("Expected 1 variable relaxed, got %d", n)
	}
	lower, upper, _, _ := bounded.Bounds()
	if lower != -1 || upper != 11 {
		t.Errorf("Expected [-1, 11], got [%v, %v]", lower, upper)
	}
	if halfBounded.hasUpper {
		t.Error("Expected half-bounded variable untouched")
	}
}

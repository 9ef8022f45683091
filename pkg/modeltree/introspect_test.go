package modeltree

import (
	"context"
	"math"
	"testing"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// brineModel builds a tiny two-unit model with one constraint tying the
// feed flow to the pump flow.
func brineModel() (*Model, *Var, *Var) {
	m := NewModel()
	fs := m.AddBlock("fs")

	feed := m.AddUnit(fs, "feed", engine.InitStandard)
	feedOut := feed.AddBlock("outlet")
	feedFlow := feedOut.AddVar("flow_vol", NewVar("fs.feed.outlet.flow_vol").WithBounds(0, 10))

	pump := m.AddUnit(fs, "pump", engine.InitStandard)
	pumpIn := pump.AddBlock("inlet")
	pumpFlow := pumpIn.AddVar("flow_vol", NewVar("fs.pump.inlet.flow_vol").WithBounds(0, 10))

	pump.AddConstraint("flow_balance", NewConstraint("fs.pump.flow_balance", func() float64 {
		return feedFlow.Value() - pumpFlow.Value()
	}))

	m.AddArc(Arc{Name: "s1", SourceUnit: "feed", SourcePort: "outlet", DestUnit: "pump", DestPort: "inlet"})
	return m, feedFlow, pumpFlow
}

func TestIntrospector_DegreesOfFreedom(t *testing.T) {
	m, feedFlow, _ := brineModel()
	in := NewIntrospector()

	free, constraints, err := in.DegreesOfFreedom(m)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if free != 2 || constraints != 1 {
		t.Errorf("Expected 2 free vars and 1 constraint, got %d and %d", free, constraints)
	}

	feedFlow.Fix(1.0)
	free, constraints, _ = in.DegreesOfFreedom(m)
	if free != 1 || constraints != 1 {
		t.Errorf("Expected square model after fix, got %d free and %d constraints", free, constraints)
	}
}

func TestIntrospector_Residuals(t *testing.T) {
	m, feedFlow, pumpFlow := brineModel()
	feedFlow.SetValue(2.0)
	pumpFlow.SetValue(0.5)
	in := NewIntrospector()

	residuals, err := in.Residuals(m, 1e-5, 10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(residuals) != 1 {
		t.Fatalf("Expected 1 large residual, got %d", len(residuals))
	}
	if residuals[0].Name != "fs.pump.flow_balance" || residuals[0].Residual != 1.5 {
		t.Errorf("Unexpected residual %+v", residuals[0])
	}

	pumpFlow.SetValue(2.0)
	residuals, _ = in.Residuals(m, 1e-5, 10)
	if len(residuals) != 0 {
		t.Errorf("Expected no residuals at the balanced point, got %d", len(residuals))
	}
}

func TestIntrospector_ResidualsSortedAndCapped(t *testing.T) {
	m := NewModel()
	fs := m.AddBlock("fs")
	unit := m.AddUnit(fs, "unit", engine.InitStandard)
	for i, r := range []float64{0.1, 3.0, 1.5} {
		val := r
		name := []string{"c_small", "c_big", "c_mid"}[i]
		unit.AddConstraint(name, NewConstraint("fs.unit."+name, func() float64 { return val }))
	}
	in := NewIntrospector()

	residuals, err := in.Residuals(m, 1e-5, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(residuals) != 2 {
		t.Fatalf("Expected cap at 2, got %d", len(residuals))
	}
	if residuals[0].Name != "fs.unit.c_big" || residuals[1].Name != "fs.unit.c_mid" {
		t.Errorf("Expected descending magnitude order, got %+v", residuals)
	}
}

func TestIntrospector_BoundViolations(t *testing.T) {
	m, feedFlow, pumpFlow := brineModel()
	feedFlow.SetValue(0)
	pumpFlow.SetValue(5)
	in := NewIntrospector()

	violations, err := in.BoundViolationsAt(m, 1e-8, 10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(violations))
	}
	if violations[0].Kind != "lower" || violations[0].Name != "fs.feed.outlet.flow_vol" {
		t.Errorf("Unexpected violation %+v", violations[0])
	}
}

func TestIntrospector_ScalingSurveyAndApply(t *testing.T) {
	m, feedFlow, pumpFlow := brineModel()
	feedFlow.SetValue(2.0)
	pumpFlow.SetValue(2.0)
	in := NewIntrospector()

	report, err := in.ScalingIssues(m)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if report.UnscaledVariables != 2 {
		t.Errorf("Expected 2 unscaled variables, got %d", report.UnscaledVariables)
	}

	if err := in.ApplyScaling(m); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	report, _ = in.ScalingIssues(m)
	if report.UnscaledVariables != 0 {
		t.Errorf("Expected all variables scaled, got %d unscaled", report.UnscaledVariables)
	}
	if feedFlow.ScalingHint() != 0.5 {
		t.Errorf("Expected inverse-magnitude factor 0.5, got %v", feedFlow.ScalingHint())
	}
}

func TestIntrospector_StructuralIssues(t *testing.T) {
	m, feedFlow, _ := brineModel()
	fs := m.GetChild("fs").(*Block)
	m.AddUnit(fs, "orphan", engine.InitStandard)
	feedFlow.Fix(-5) // below its lower bound

	in := NewIntrospector()
	issues, err := in.StructuralIssues(m)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("Expected 2 issues, got %d: %v", len(issues), issues)
	}
}

func TestResidualSolver_OptimalAtBalancedPoint(t *testing.T) {
	m, feedFlow, pumpFlow := brineModel()
	feedFlow.SetValue(2.0)
	pumpFlow.SetValue(2.0)

	report, err := NewResidualSolver().Solve(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !report.Optimal || report.TerminationCondition != "optimal" {
		t.Errorf("Expected optimal termination, got %+v", report)
	}
}

func TestResidualSolver_InfeasiblePoint(t *testing.T) {
	m, feedFlow, pumpFlow := brineModel()
	feedFlow.SetValue(2.0)
	pumpFlow.SetValue(0.0)

	report, err := NewResidualSolver().Solve(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if report.Optimal {
		t.Fatal("Expected non-optimal termination")
	}
	if report.TerminationCondition != "infeasible" {
		t.Errorf("Expected infeasible condition, got %s", report.TerminationCondition)
	}
}

func TestResidualSolver_EvaluationError(t *testing.T) {
	m := NewModel()
	fs := m.AddBlock("fs")
	unit := m.AddUnit(fs, "unit", engine.InitStandard)
	unit.AddConstraint("bad", NewConstraint("fs.unit.bad", func() float64 { return math.NaN() }))

	report, err := NewResidualSolver().Solve(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if report.Optimal || report.TerminationCondition != "numerical_error" {
		t.Errorf("Expected numerical error termination, got %+v", report)
	}
}

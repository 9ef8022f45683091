package modeltree

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// ResidualSolver is the reference engine.Solver. It does not iterate;
// it verifies the current point by evaluating every active constraint
// and reports optimal when all residuals sit below tolerance. Real
// numerical solving happens in an external solver adapter; this one
// exists so pipelines, tests, and planning runs work self-contained.
type ResidualSolver struct {
	// Tolerance is the residual acceptance threshold. Zero means the
	// default of 1e-6. Overridable per solve with the "tol" option.
	Tolerance float64
}

// NewResidualSolver creates a residual-check solver with the default
// tolerance.
func NewResidualSolver() *ResidualSolver {
	return &ResidualSolver{}
}

// Solve evaluates the model's active constraints at the current point.
func (s *ResidualSolver) Solve(ctx context.Context, m engine.Model, options map[string]interface{}) (engine.SolveReport, error) {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return engine.SolveReport{}, err
	}
	tree, err := asModel(m)
	if err != nil {
		return engine.SolveReport{}, err
	}

	tol := s.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	if v, ok := options["tol"].(float64); ok && v > 0 {
		tol = v
	}

	worst := 0.0
	worstName := ""
	checked := 0
	for _, c := range tree.Constraints() {
		if !c.Active() {
			continue
		}
		checked++
		r := c.Residual()
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return engine.SolveReport{
				TerminationCondition: "numerical_error",
				SolverMessage:        fmt.Sprintf("evaluation error in constraint %s at the current point", c.Name()),
				Duration:             time.Since(started),
			}, nil
		}
		if abs := math.Abs(r); abs > worst {
			worst = abs
			worstName = c.Name()
		}
	}

	report := engine.SolveReport{
		Iterations: checked,
		Duration:   time.Since(started),
	}
	if worst <= tol {
		report.Optimal = true
		report.TerminationCondition = "optimal"
		report.SolverMessage = fmt.Sprintf("all %d residual(s) within tolerance %.1e", checked, tol)
		return report, nil
	}
	report.TerminationCondition = "infeasible"
	report.SolverMessage = fmt.Sprintf("infeasible point: constraint %s has residual %.3e above tolerance %.1e", worstName, worst, tol)
	return report, nil
}

// interface guard
var _ engine.Solver = (*ResidualSolver)(nil)

package modeltree

import (
	"fmt"
	"math"
	"sort"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Scaled magnitudes outside [1e-4, 1e4] count as badly scaled.
const (
	scaledMagnitudeLow  = 1e-4
	scaledMagnitudeHigh = 1e4
)

// Introspector is the reference engine.Introspector over a modeltree
// model.
type Introspector struct{}

// NewIntrospector creates the reference introspector.
func NewIntrospector() *Introspector {
	return &Introspector{}
}

func asModel(m engine.Model) (*Model, error) {
	tree, ok := m.(*Model)
	if !ok {
		return nil, fmt.Errorf("model is %T, expected *modeltree.Model", m)
	}
	return tree, nil
}

// DegreesOfFreedom counts unfixed variables and active equality
// constraints.
func (in *Introspector) DegreesOfFreedom(m engine.Model) (int, int, error) {
	tree, err := asModel(m)
	if err != nil {
		return 0, 0, err
	}
	free := 0
	for _, v := range tree.Variables() {
		if !v.Fixed() {
			free++
		}
	}
	constraints := 0
	for _, c := range tree.Constraints() {
		if c.Active() && c.Equality() {
			constraints++
		}
	}
	return free, constraints, nil
}

// StructuralIssues reports units with no arcs, fixed values outside
// their own bounds, and constraints that fail to evaluate at the
// current point.
func (in *Introspector) StructuralIssues(m engine.Model) ([]string, error) {
	tree, err := asModel(m)
	if err != nil {
		return nil, err
	}

	var issues []string
	connected := make(map[string]bool)
	for _, a := range tree.Arcs() {
		connected[a.SourceUnit] = true
		connected[a.DestUnit] = true
	}
	for _, u := range tree.Units() {
		if !connected[u.Name] && len(tree.Units()) > 1 {
			issues = append(issues, fmt.Sprintf("unit %s has no connections", u.Name))
		}
	}

	for _, v := range tree.Variables() {
		if !v.Fixed() {
			continue
		}
		lower, upper, hasLower, hasUpper := v.Bounds()
		if hasLower && v.Value() < lower {
			issues = append(issues, fmt.Sprintf("fixed variable %s value %.6g is below its lower bound %.6g", v.Name(), v.Value(), lower))
		}
		if hasUpper && v.Value() > upper {
			issues = append(issues, fmt.Sprintf("fixed variable %s value %.6g is above its upper bound %.6g", v.Name(), v.Value(), upper))
		}
	}

	for _, c := range tree.Constraints() {
		if !c.Active() {
			continue
		}
		if r := c.Residual(); math.IsNaN(r) || math.IsInf(r, 0) {
			issues = append(issues, fmt.Sprintf("constraint %s does not evaluate at the current point", c.Name()))
		}
	}
	return issues, nil
}

// Residuals returns active constraints whose absolute residual exceeds
// the threshold, sorted descending by magnitude, at most limit entries.
func (in *Introspector) Residuals(m engine.Model, threshold float64, limit int) ([]engine.ConstraintResidual, error) {
	tree, err := asModel(m)
	if err != nil {
		return nil, err
	}
	var out []engine.ConstraintResidual
	for _, c := range tree.Constraints() {
		if !c.Active() {
			continue
		}
		r := math.Abs(c.Residual())
		if math.IsNaN(r) || r <= threshold {
			continue
		}
		out = append(out, engine.ConstraintResidual{Name: c.Name(), Residual: r})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Residual > out[j].Residual })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BoundViolationsAt returns unfixed variables within tolerance of, at,
// or past a bound.
func (in *Introspector) BoundViolationsAt(m engine.Model, tolerance float64, limit int) ([]engine.BoundViolation, error) {
	tree, err := asModel(m)
	if err != nil {
		return nil, err
	}
	var out []engine.BoundViolation
	for _, v := range tree.Variables() {
		if v.Fixed() {
			continue
		}
		lower, upper, hasLower, hasUpper := v.Bounds()
		if hasLower && v.Value() <= lower+tolerance {
			out = append(out, engine.BoundViolation{Name: v.Name(), Value: v.Value(), Bound: lower, Kind: "lower"})
		} else if hasUpper && v.Value() >= upper-tolerance {
			out = append(out, engine.BoundViolation{Name: v.Name(), Value: v.Value(), Bound: upper, Kind: "upper"})
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ScalingIssues surveys the tree for missing and extreme scaling.
func (in *Introspector) ScalingIssues(m engine.Model) (engine.ScalingReport, error) {
	tree, err := asModel(m)
	if err != nil {
		return engine.ScalingReport{}, err
	}
	report := engine.ScalingReport{}
	for _, v := range tree.Variables() {
		scale := v.ScalingHint()
		if scale == 0 {
			report.UnscaledVariables++
			if len(report.Issues) < 20 {
				report.Issues = append(report.Issues, fmt.Sprintf("variable %s has no scaling factor", v.Name()))
			}
			continue
		}
		mag := math.Abs(v.Value() * scale)
		if mag != 0 && (mag < scaledMagnitudeLow || mag > scaledMagnitudeHigh) {
			report.BadlyScaledVariables++
			if len(report.Issues) < 20 {
				report.Issues = append(report.Issues, fmt.Sprintf("variable %s has scaled magnitude %.3e", v.Name(), mag))
			}
		}
	}
	for _, c := range tree.Constraints() {
		if c.Active() && c.ScalingHint() == 0 {
			report.UnscaledConstraints++
		}
	}
	return report, nil
}

// ApplyScaling assigns inverse-magnitude scaling factors to variables
// and constraints that have none. Zero-valued variables get a factor
// of one since their magnitude carries no information yet.
func (in *Introspector) ApplyScaling(m engine.Model) error {
	tree, err := asModel(m)
	if err != nil {
		return err
	}
	for _, v := range tree.Variables() {
		if v.ScalingHint() != 0 {
			continue
		}
		if mag := math.Abs(v.Value()); mag > 0 {
			v.SetScalingHint(1 / mag)
		} else {
			v.SetScalingHint(1)
		}
	}
	for _, c := range tree.Constraints() {
		if !c.Active() || c.ScalingHint() != 0 {
			continue
		}
		if mag := math.Abs(c.Residual()); mag > 1 {
			c.SetScalingHint(1 / mag)
		} else {
			c.SetScalingHint(1)
		}
	}
	return nil
}

// Variables adapts the tree's variables to the engine's handle type in
// deterministic order.
func (in *Introspector) Variables(m engine.Model) []engine.Variable {
	tree, ok := m.(*Model)
	if !ok {
		return nil
	}
	vars := tree.Variables()
	out := make([]engine.Variable, len(vars))
	for i, v := range vars {
		out[i] = v
	}
	return out
}

// interface guard
var _ engine.Introspector = (*Introspector)(nil)

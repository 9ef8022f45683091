package engine

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DOFChecker verifies a model's degrees of freedom before solving.
type DOFChecker struct {
	log   zerolog.Logger
	intro Introspector
}

// NewDOFChecker creates a degrees-of-freedom checker.
func NewDOFChecker(log zerolog.Logger, intro Introspector) *DOFChecker {
	return &DOFChecker{
		log:   log.With().Str("component", "dof_checker").Logger(),
		intro: intro,
	}
}

// Check computes the model's degrees of freedom and classifies the
// result. A square model reports DOFReady; positive degrees report
// underspecified, negative report overspecified. Introspection failures
// report DOFError with the underlying message preserved.
func (d *DOFChecker) Check(m Model) DOFReport {
	free, constraints, err := d.intro.DegreesOfFreedom(m)
	if err != nil {
		d.log.Error().Err(err).Msg("degrees of freedom computation failed")
		return DOFReport{
			Status:  DOFError,
			Message: fmt.Sprintf("failed to compute degrees of freedom: %v", err),
		}
	}

	dof := free - constraints
	report := DOFReport{
		DegreesOfFreedom:  dof,
		FreeVariables:     free,
		ActiveConstraints: constraints,
	}
	switch {
	case dof == 0:
		report.Status = DOFReady
		report.Message = "model is square and ready to solve"
	case dof > 0:
		report.Status = DOFUnderspecified
		report.Message = fmt.Sprintf("model is underspecified with %d degrees of freedom; fix %d more variable(s)", dof, dof)
		report.Suggestions = d.suggestFixes(m, dof)
	default:
		report.Status = DOFOverspecified
		report.Message = fmt.Sprintf("model is overspecified by %d; unfix %d variable(s) or deactivate constraints", -dof, -dof)
		report.Suggestions = d.suggestUnfixes(m, -dof)
	}

	d.log.Info().Str("status", string(report.Status)).Int("dof", dof).
		Int("free_vars", free).Int("constraints", constraints).Msg("dof check complete")
	return report
}

// suggestFixes returns up to n unfixed variable names as candidates to
// fix when the model is underspecified.
func (d *DOFChecker) suggestFixes(m Model, n int) []string {
	var out []string
	for _, v := range d.intro.Variables(m) {
		if v.Fixed() {
			continue
		}
		out = append(out, v.Name())
		if len(out) >= n {
			break
		}
	}
	return out
}

// suggestUnfixes returns up to n fixed variable names as candidates to
// release when the model is overspecified.
func (d *DOFChecker) suggestUnfixes(m Model, n int) []string {
	var out []string
	for _, v := range d.intro.Variables(m) {
		if !v.Fixed() {
			continue
		}
		out = append(out, v.Name())
		if len(out) >= n {
			break
		}
	}
	return out
}

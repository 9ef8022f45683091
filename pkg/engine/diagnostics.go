package engine

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Diagnostic thresholds. Residuals above residualThreshold and values
// within boundTolerance of a bound are reported, capped at reportLimit
// entries each.
const (
	residualThreshold = 1e-5
	boundTolerance    = 1e-8
	reportLimit       = 20
)

// Diagnostician runs structural checks before a solve and numerical
// checks after one.
type Diagnostician struct {
	log   zerolog.Logger
	intro Introspector
}

// NewDiagnostician creates a diagnostician.
func NewDiagnostician(log zerolog.Logger, intro Introspector) *Diagnostician {
	return &Diagnostician{
		log:   log.With().Str("component", "diagnostics").Logger(),
		intro: intro,
	}
}

// PreSolve reports structural issues such as disconnected components or
// evaluation errors at the initial point. Findings are warnings; the
// report is unhealthy only when the survey itself fails.
func (d *Diagnostician) PreSolve(m Model) (DiagnosticsReport, error) {
	issues, err := d.intro.StructuralIssues(m)
	if err != nil {
		return DiagnosticsReport{}, NewFatalError("structural diagnostics failed", err).
			WithCode(ErrCodeStageFailure).WithStage(StagePreSolveDiagnostics)
	}
	report := DiagnosticsReport{
		Structural: true,
		Warnings:   issues,
		Healthy:    len(issues) == 0,
	}
	d.log.Info().Int("warnings", len(issues)).Msg("pre-solve diagnostics complete")
	return report, nil
}

// PostSolve surveys the solved model for large constraint residuals and
// variables stuck at their bounds.
func (d *Diagnostician) PostSolve(m Model) (DiagnosticsReport, error) {
	residuals, err := d.intro.Residuals(m, residualThreshold, reportLimit)
	if err != nil {
		return DiagnosticsReport{}, NewFatalError("residual survey failed", err).
			WithCode(ErrCodeStageFailure).WithStage(StagePostSolveDiagnostics)
	}
	violations, err := d.intro.BoundViolationsAt(m, boundTolerance, reportLimit)
	if err != nil {
		return DiagnosticsReport{}, NewFatalError("bound survey failed", err).
			WithCode(ErrCodeStageFailure).WithStage(StagePostSolveDiagnostics)
	}

	report := DiagnosticsReport{
		Residuals:       residuals,
		BoundViolations: violations,
		Healthy:         len(residuals) == 0 && len(violations) == 0,
	}
	for _, res := range residuals {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("constraint %s has residual %.3e", res.Name, res.Residual))
	}
	for _, bv := range violations {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("variable %s is at its %s bound (value=%.6g, bound=%.6g)", bv.Name, bv.Kind, bv.Value, bv.Bound))
	}

	d.log.Info().Int("residuals", len(residuals)).Int("bound_violations", len(violations)).
		Bool("healthy", report.Healthy).Msg("post-solve diagnostics complete")
	return report, nil
}

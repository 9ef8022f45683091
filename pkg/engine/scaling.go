package engine

import (
	"github.com/rs/zerolog"
)

// Scaler runs the scaling stage: optionally applying automatic scaling
// factors, then surveying the model for scaling problems.
type Scaler struct {
	log   zerolog.Logger
	intro Introspector
}

// NewScaler creates a scaler.
func NewScaler(log zerolog.Logger, intro Introspector) *Scaler {
	return &Scaler{
		log:   log.With().Str("component", "scaler").Logger(),
		intro: intro,
	}
}

// Run applies automatic scaling when autoScale is set and returns a
// report of remaining scaling issues. Scaling problems are advisory;
// the stage succeeds with warnings rather than failing the pipeline.
func (s *Scaler) Run(m Model, autoScale bool) (ScalingReport, error) {
	if autoScale {
		if err := s.intro.ApplyScaling(m); err != nil {
			return ScalingReport{}, NewFatalError("automatic scaling failed", err).
				WithCode(ErrCodeStageFailure).WithStage(StageScaling)
		}
	}

	report, err := s.intro.ScalingIssues(m)
	if err != nil {
		return ScalingReport{}, NewFatalError("scaling survey failed", err).
			WithCode(ErrCodeStageFailure).WithStage(StageScaling)
	}
	report.Applied = autoScale

	s.log.Info().Bool("auto_scale", autoScale).
		Int("unscaled_vars", report.UnscaledVariables).
		Int("badly_scaled_vars", report.BadlyScaledVariables).
		Int("unscaled_constraints", report.UnscaledConstraints).
		Msg("scaling stage complete")
	return report, nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/builder"
	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/session"
	"github.com/aquasolve/aquasolve/pkg/stores"
)

// withModel loads a session, builds its model, and hands a wired runner
// to the command body.
func withModel(ctx context.Context, id string,
	fn func(ctx context.Context, st stores.Store, sess *session.FlowsheetSession, result *builder.Result, runner *engine.Runner) error) error {
	return withStore(ctx, func(ctx context.Context, cfg *config.Config, st stores.Store) error {
		sess, err := loadSession(ctx, st, id)
		if err != nil {
			return err
		}
		result, err := buildModel(sess)
		if err != nil {
			return err
		}
		return fn(ctx, st, sess, result, newRunner(cfg, sess.Pipeline))
	})
}

func newDOFCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dof <session-id>",
		Short: "Run the degrees-of-freedom check",
		Long: `Run the degrees-of-freedom check on the session's model: free
variables minus active equality constraints, with fix and unfix
suggestions when the count is off zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModel(cmd.Context(), args[0], func(ctx context.Context, st stores.Store, sess *session.FlowsheetSession, result *builder.Result, runner *engine.Runner) error {
				report := runner.CheckDOF(result.Model)
				if jsonOutput {
					return printJSON(report)
				}
				fmt.Printf("Status:      %s\n", report.Status)
				fmt.Printf("DOF:         %d (%d free vars, %d constraints)\n",
					report.DegreesOfFreedom, report.FreeVariables, report.ActiveConstraints)
				fmt.Printf("Message:     %s\n", report.Message)
				for _, s := range report.Suggestions {
					fmt.Printf("  suggest: %s\n", s)
				}
				return nil
			})
		},
	}
}

func newScalingReportCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "scaling-report <session-id>",
		Short: "Survey variable and constraint scaling",
		Long: `Survey variable and constraint scaling: counts of unscaled and badly
scaled entities with individual issues listed. With --apply, missing
scaling factors are first derived from current values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				sess, err := loadSession(ctx, st, args[0])
				if err != nil {
					return err
				}
				result, err := buildModel(sess)
				if err != nil {
					return err
				}
				sess.Pipeline.AutoScale = apply
				report, err := newRunner(cfg, sess.Pipeline).SurveyScaling(result.Model)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(report)
				}
				fmt.Printf("Auto-scaling applied: %v\n", report.Applied)
				fmt.Printf("Unscaled variables:   %d\n", report.UnscaledVariables)
				fmt.Printf("Badly scaled:         %d\n", report.BadlyScaledVariables)
				fmt.Printf("Unscaled constraints: %d\n", report.UnscaledConstraints)
				for _, issue := range report.Issues {
					fmt.Printf("  %s\n", issue)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "derive missing scaling factors from current values")

	return cmd
}

func newOrderCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "order <session-id>",
		Short: "Sequence units for initialization",
		Long: `Sequence the session's units for initialization. Planning mode uses
topological ordering with the session's tear streams breaking recycle
cycles; bound mode lets the decomposer pick tears itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderMode := engine.OrderMode(mode)
			if orderMode != engine.OrderModePlanning && orderMode != engine.OrderModeBound {
				return fmt.Errorf("invalid mode %q, want planning or bound", mode)
			}
			return withModel(cmd.Context(), args[0], func(ctx context.Context, st stores.Store, sess *session.FlowsheetSession, result *builder.Result, runner *engine.Runner) error {
				orderResult, err := runner.Order(ctx, result.Model, orderMode)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(orderResult)
				}
				fmt.Printf("Order (%s): %s\n", orderResult.Mode, strings.Join(orderResult.Order, " -> "))
				if len(orderResult.TearsApplied) > 0 {
					fmt.Printf("Tears:      %s\n", strings.Join(orderResult.TearsApplied, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(engine.OrderModePlanning), "ordering mode (planning|bound)")

	return cmd
}

func newDiagnoseCommand() *cobra.Command {
	var postSolve bool

	cmd := &cobra.Command{
		Use:   "diagnose <session-id>",
		Short: "Run structural or numerical diagnostics",
		Long: `Run structural diagnostics on the session's model, or numerical
diagnostics with --post-solve: large constraint residuals and variables
at or beyond their bounds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModel(cmd.Context(), args[0], func(ctx context.Context, st stores.Store, sess *session.FlowsheetSession, result *builder.Result, runner *engine.Runner) error {
				report, err := runner.Diagnose(result.Model, postSolve)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(report)
				}
				kind := "structural"
				if !report.Structural {
					kind = "numerical"
				}
				fmt.Printf("Diagnostics (%s): healthy=%v\n", kind, report.Healthy)
				for _, r := range report.Residuals {
					fmt.Printf("  residual %-40s %.6g\n", r.Name, r.Residual)
				}
				for _, bv := range report.BoundViolations {
					fmt.Printf("  bound    %-40s value=%.6g %s=%.6g\n", bv.Name, bv.Value, bv.Kind, bv.Bound)
				}
				for _, w := range report.Warnings {
					fmt.Printf("  warning  %s\n", w)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&postSolve, "post-solve", false, "run numerical post-solve diagnostics")

	return cmd
}

func newSuggestRecoveryCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "suggest-recovery <session-id>",
		Short: "Analyze a failed run and suggest recovery actions",
		Long: `Analyze a failed run's solver outcome and suggest recovery actions
in priority order, without touching the model. Defaults to the
session's most recent run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModel(cmd.Context(), args[0], func(ctx context.Context, st stores.Store, sess *session.FlowsheetSession, result *builder.Result, runner *engine.Runner) error {
				report, err := solveReportFromRun(ctx, st, sess.ID, runID)
				if err != nil {
					return err
				}
				analysis := runner.SuggestRecovery(result.Model, report)
				if jsonOutput {
					return printJSON(analysis)
				}
				fmt.Printf("Failure type: %s\n", analysis.Type)
				fmt.Printf("Solver said:  %s\n", analysis.SolverMessage)
				for _, cause := range analysis.LikelyCauses {
					fmt.Printf("  cause:   %s\n", cause)
				}
				for _, action := range analysis.Actions {
					auto := " (manual)"
					if action.Automated {
						auto = ""
					}
					fmt.Printf("  action:  %s%s: %s\n", action.Strategy, auto, action.Description)
				}
				for _, hint := range analysis.ContextHints {
					fmt.Printf("  hint:    %s\n", hint)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "analyze a specific run instead of the latest")

	return cmd
}

// solveReportFromRun reconstructs the solver outcome from a persisted
// run's stage history.
func solveReportFromRun(ctx context.Context, st stores.Store, sessionID, runID string) (engine.SolveReport, error) {
	var rec *stores.RunRecord
	if runID != "" {
		var err error
		rec, err = st.GetRun(ctx, runID)
		if err != nil {
			return engine.SolveReport{}, err
		}
	} else {
		runs, err := st.ListRunsBySession(ctx, sessionID, 1, 0)
		if err != nil {
			return engine.SolveReport{}, err
		}
		if len(runs) == 0 {
			return engine.SolveReport{}, fmt.Errorf("session %s has no runs to analyze", sessionID)
		}
		rec = runs[0]
	}

	var history []engine.StageResult
	if err := json.Unmarshal(rec.History, &history); err != nil {
		return engine.SolveReport{}, fmt.Errorf("failed to decode run %s history: %w", rec.ID, err)
	}
	report, ok := solveReportFromHistory(history)
	if !ok {
		return engine.SolveReport{}, fmt.Errorf("run %s has no solve stage to analyze", rec.ID)
	}
	return report, nil
}

// solveReportFromHistory recovers the last solve outcome recorded in a
// stage history.
func solveReportFromHistory(history []engine.StageResult) (engine.SolveReport, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		sr := history[i]
		if sr.Stage != engine.StageSolving && sr.Stage != engine.StageRelaxedSolve {
			continue
		}
		report := engine.SolveReport{Optimal: sr.Success}
		if tc, ok := sr.Details["termination_condition"].(string); ok {
			report.TerminationCondition = tc
		}
		if len(sr.Errors) > 0 {
			report.SolverMessage = sr.Errors[len(sr.Errors)-1]
		}
		return report, true
	}
	return engine.SolveReport{}, false
}

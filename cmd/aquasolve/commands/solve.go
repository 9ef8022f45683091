package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/session"
	"github.com/aquasolve/aquasolve/pkg/stores"
	"github.com/aquasolve/aquasolve/pkg/telemetry"
)

func newSolveCommand() *cobra.Command {
	var attemptRecovery bool

	cmd := &cobra.Command{
		Use:   "solve <session-id>",
		Short: "Run the full solve pipeline on a session",
		Long: `Run the full solve pipeline on a session: degrees-of-freedom check,
scaling, sequential initialization, structural diagnostics, solve,
optional recovery and post-solve diagnostics. The run and its stage
history are persisted against the session.

With --recover, a failed solve continues into the recovery stage: the
failure is classified and the automated actions the analyzer suggests
are applied with bounded retry solves. A run recovered this way resumes
at post-solve diagnostics, and the recovery audit trail is part of the
run's stage history.`,
		Example: `  # Solve a session
  aquasolve solve 4f0c...

  # Solve with automated failure recovery
  aquasolve solve 4f0c... --recover`,
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

				if sess.Status == session.StatusCreated || sess.Status == session.StatusBuilding {
					if err := sess.Transition(session.StatusReady); err != nil {
						return err
					}
				}
				if err := sess.Transition(session.StatusSolving); err != nil {
					return err
				}
				if err := saveSession(ctx, st, sess); err != nil {
					return err
				}

				tel, err := telemetry.NewTelemetry(cfg.TelemetryBundle())
				if err != nil {
					return err
				}
				defer tel.Shutdown(context.Background())

				runID := uuid.New().String()
				startedAt := time.Now().UTC()
				runCtx := telemetry.WithRunContext(tel.WithContext(ctx), runID, sess.ID)

				pc := sess.Pipeline
				if attemptRecovery {
					pc.EnableRelaxedSolve = true
				}
				runner := newRunner(cfg, pc)
				pipelineResult := runner.Solve(runCtx, result.Model)

				var runErr error
				if !pipelineResult.Success {
					runErr = errors.New(pipelineResult.Message)
				}
				telemetry.EndRunContext(runCtx, runID, string(pipelineResult.State), runErr)

				history, err := json.Marshal(pipelineResult.History)
				if err != nil {
					return fmt.Errorf("failed to encode run history: %w", err)
				}
				if err := st.CreateRun(ctx, &stores.RunRecord{
					ID:          runID,
					SessionID:   sess.ID,
					Success:     pipelineResult.Success,
					FinalState:  string(pipelineResult.State),
					Message:     pipelineResult.Message,
					History:     history,
					StartedAt:   startedAt,
					CompletedAt: time.Now().UTC(),
				}); err != nil {
					return err
				}

				target := session.StatusFailed
				if pipelineResult.Success {
					target = session.StatusSolved
				}
				if err := sess.Transition(target); err != nil {
					return err
				}
				if err := saveSession(ctx, st, sess); err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(map[string]interface{}{
						"run_id": runID,
						"result": pipelineResult,
					})
				}
				printPipelineResult(runID, pipelineResult)
				if !pipelineResult.Success {
					return fmt.Errorf("solve failed: %s", pipelineResult.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&attemptRecovery, "recover", false, "attempt automated recovery after a failed solve")

	return cmd
}

func printPipelineResult(runID string, pr engine.PipelineResult) {
	fmt.Printf("Run %s: %s\n", runID, pr.Message)
	for _, sr := range pr.History {
		status := "ok"
		if !sr.Success {
			status = "FAILED"
		}
		fmt.Printf("  %-24s %-6s %s\n", sr.Stage, status, sr.Message)
	}
	for _, w := range pr.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

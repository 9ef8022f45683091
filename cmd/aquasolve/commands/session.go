package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/session"
	"github.com/aquasolve/aquasolve/pkg/stores"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage flowsheet sessions",
		Long: `Manage flowsheet sessions: the persistent definitions of units,
connections, translators, feed state and specifications a model is
built from.`,
	}

	cmd.AddCommand(newSessionCreateCommand())
	cmd.AddCommand(newSessionListCommand())
	cmd.AddCommand(newSessionShowCommand())
	cmd.AddCommand(newSessionDeleteCommand())
	cmd.AddCommand(newSessionImportCommand())

	return cmd
}

func newSessionCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new empty session",
		Example: `  # Create a session for a reverse osmosis train
  aquasolve session create ro-train`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				sess := session.New(args[0])
				sess.Pipeline = cfg.Pipeline
				if err := saveSession(ctx, st, sess); err != nil {
					return err
				}
				log.Info().Str("session_id", sess.ID).Str("name", sess.Name).Msg("Session created")
				if jsonOutput {
					return printJSON(sess)
				}
				fmt.Println(sess.ID)
				return nil
			})
		},
	}
}

func newSessionListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				records, err := st.ListSessions(ctx, limit, offset)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(records)
				}
				if len(records) == 0 {
					fmt.Println("No sessions")
					return nil
				}
				for _, rec := range records {
					fmt.Printf("%s  %-12s  %-20s  %s\n",
						rec.ID, rec.Status, rec.Name, rec.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "sessions to skip")

	return cmd
}

func newSessionShowCommand() *cobra.Command {
	var showRuns bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's full definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				sess, err := loadSession(ctx, st, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(sess)
				}
				fmt.Printf("Session %s (%s)\n", sess.Name, sess.ID)
				fmt.Printf("  Status:  %s\n", sess.Status)
				fmt.Printf("  Updated: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("  Units (%d):\n", len(sess.Units))
				for _, u := range sess.Units {
					fmt.Printf("    %-16s %s\n", u.Name, u.Type)
				}
				fmt.Printf("  Connections (%d):\n", len(sess.Connections))
				for _, c := range sess.Connections {
					fmt.Printf("    %-8s %s.%s -> %s.%s\n", c.Name, c.Source, c.SourcePort, c.Dest, c.DestPort)
				}
				for _, tr := range sess.Translators {
					fmt.Printf("  Translator %s (%s) on %s\n", tr.Name, tr.Type, tr.Connection)
				}
				for _, fv := range sess.FixedVars {
					fmt.Printf("  Fix %s = %g\n", fv.Path, fv.Value)
				}
				for _, sh := range sess.ScalingHints {
					fmt.Printf("  Scale %s * %g\n", sh.Path, sh.Factor)
				}
				if showRuns {
					runs, err := st.ListRunsBySession(ctx, sess.ID, 20, 0)
					if err != nil {
						return err
					}
					fmt.Printf("  Runs (%d):\n", len(runs))
					for _, run := range runs {
						fmt.Printf("    %s  success=%-5v  %-24s  %s\n",
							run.ID, run.Success, run.FinalState, run.Message)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showRuns, "runs", false, "include the session's run history")

	return cmd
}

func newSessionDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				if err := st.DeleteSession(ctx, args[0]); err != nil {
					return err
				}
				log.Info().Str("session_id", args[0]).Msg("Session deleted")
				return nil
			})
		},
	}
}

func newSessionImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML flowsheet document as a new session",
		Long: `Import a YAML flowsheet document as a new session.

The document is replayed through the same validation an interactively
built session gets: unit types and ports are checked, duplicates
rejected, translators bound to real connections.`,
		Example: `  # Import a flowsheet definition
  aquasolve session import ro-train.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			sess, err := session.ParseDocument(data)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				if err := saveSession(ctx, st, sess); err != nil {
					return err
				}
				log.Info().
					Str("session_id", sess.ID).
					Str("name", sess.Name).
					Int("units", len(sess.Units)).
					Int("connections", len(sess.Connections)).
					Msg("Session imported")
				if jsonOutput {
					return printJSON(sess)
				}
				fmt.Println(sess.ID)
				return nil
			})
		},
	}
}

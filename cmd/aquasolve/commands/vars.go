package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/session"
)

func newFixVarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-var <session-id> <path> <value>",
		Short: "Fix every variable a path matches at a value",
		Long: `Fix every variable a path matches at a value. Paths are dotted with
optional [*] wildcards and [Liq,H2O] index selectors, resolved against
the flowsheet at build time.`,
		Example: `  # Fix pump efficiency
  aquasolve fix-var 4f0c... hp_pump.efficiency 0.8

  # Fix membrane area across all RO stages
  aquasolve fix-var 4f0c... "ro[*].area" 50`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseFloat("value", args[2])
			if err != nil {
				return err
			}
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				sess.FixVariable(args[1], value)
				log.Info().Str("path", args[1]).Float64("value", value).Msg("Variable fix recorded")
				return nil
			})
		},
	}
}

func newUnfixVarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unfix-var <session-id> <path>",
		Short: "Remove a fix specification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				sess.UnfixVariable(args[1])
				log.Info().Str("path", args[1]).Msg("Variable fix removed")
				return nil
			})
		},
	}
}

func newSetScalingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-scaling <session-id> <path> <factor>",
		Short: "Record a scaling factor for every variable a path matches",
		Example: `  # Pressures are order 1e5 Pa
  aquasolve set-scaling 4f0c... hp_pump.outlet.pressure 1e-5`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			factor, err := parseFloat("factor", args[2])
			if err != nil {
				return err
			}
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				sess.SetScaling(args[1], factor)
				log.Info().Str("path", args[1]).Float64("factor", factor).Msg("Scaling hint recorded")
				return nil
			})
		},
	}
}

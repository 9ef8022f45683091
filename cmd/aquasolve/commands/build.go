package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/registry"
	"github.com/aquasolve/aquasolve/pkg/session"
)

func newUnitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Add and remove flowsheet units",
	}

	cmd.AddCommand(newUnitAddCommand())
	cmd.AddCommand(newUnitRemoveCommand())
	cmd.AddCommand(newUnitTypesCommand())

	return cmd
}

func newUnitAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <session-id> <name> <type>",
		Short: "Add a unit of a registered type",
		Example: `  # Add a high pressure pump
  aquasolve unit add 4f0c... hp_pump Pump`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				if err := sess.AddUnit(args[1], args[2]); err != nil {
					return err
				}
				log.Info().Str("unit", args[1]).Str("type", args[2]).Msg("Unit added")
				return nil
			})
		},
	}
}

func newUnitRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id> <name>",
		Short: "Remove a unit and every connection touching it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				if err := sess.RemoveUnit(args[1]); err != nil {
					return err
				}
				log.Info().Str("unit", args[1]).Msg("Unit removed")
				return nil
			})
		},
	}
}

func newUnitTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered unit types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				types := make([]registry.UnitSpec, 0)
				for _, name := range registry.UnitTypes() {
					spec, _ := registry.LookupUnit(name)
					types = append(types, spec)
				}
				return printJSON(types)
			}
			for _, name := range registry.UnitTypes() {
				spec, _ := registry.LookupUnit(name)
				ports := make([]string, 0, len(spec.Ports))
				for _, p := range spec.Ports {
					ports = append(ports, fmt.Sprintf("%s(%s)", p.Name, p.Direction))
				}
				fmt.Printf("%-22s %-12s pack=%-10s ports=%s\n",
					spec.Type, spec.Category, spec.PropertyPack, strings.Join(ports, ","))
			}
			return nil
		},
	}
}

func newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <session-id> <name> <source.port> <dest.port>",
		Short: "Connect two units with a directed stream",
		Long: `Connect two units with a directed stream. Endpoints are written as
unit.port; the source port must be an outlet and the destination port
an inlet.`,
		Example: `  # Feed the pump from the intake
  aquasolve connect 4f0c... s1 intake.outlet hp_pump.inlet`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, sourcePort, err := splitEndpoint(args[2])
			if err != nil {
				return err
			}
			dest, destPort, err := splitEndpoint(args[3])
			if err != nil {
				return err
			}
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				if err := sess.Connect(args[1], source, sourcePort, dest, destPort); err != nil {
					return err
				}
				log.Info().
					Str("connection", args[1]).
					Str("source", args[2]).
					Str("dest", args[3]).
					Msg("Units connected")
				return nil
			})
		},
	}
}

func splitEndpoint(endpoint string) (unit, port string, err error) {
	parts := strings.SplitN(endpoint, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid endpoint %q, want unit.port", endpoint)
	}
	return parts[0], parts[1], nil
}

func newTranslatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translator",
		Short: "Place state translators on connections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <session-id> <name> <type> <connection>",
		Short: "Place a translator of a registered type on a connection",
		Example: `  # Translate seawater state to NaCl state on stream s2
  aquasolve translator add 4f0c... t1 TranslatorSeawaterNaCl s2`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				if err := sess.AddTranslator(args[1], args[2], args[3]); err != nil {
					return err
				}
				log.Info().
					Str("translator", args[1]).
					Str("type", args[2]).
					Str("connection", args[3]).
					Msg("Translator placed")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List the registered translator types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return printJSON(registry.Translators())
			}
			for _, spec := range registry.Translators() {
				fmt.Printf("%-26s %s -> %s\n", spec.Type, spec.Source, spec.Dest)
			}
			return nil
		},
	})

	return cmd
}

func newSetFeedCommand() *cobra.Command {
	var index string

	cmd := &cobra.Command{
		Use:   "set-feed <session-id> <state-var> <value>",
		Short: "Set a feed stream state value",
		Long: `Set a feed stream state value. Indexed state variables take the
index as a comma-separated list, e.g. --index Liq,H2O; scalar state
variables omit it.`,
		Example: `  # Water mass flow in the liquid phase
  aquasolve set-feed 4f0c... flow_mass_phase_comp --index Liq,H2O 0.965

  # Feed temperature
  aquasolve set-feed 4f0c... temperature 293.15`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseFloat("value", args[2])
			if err != nil {
				return err
			}
			ix := parseIndexFlag(index)
			return mutateSession(cmd.Context(), args[0], func(sess *session.FlowsheetSession) error {
				sess.SetFeedValue(args[1], ix, value)
				log.Info().
					Str("state_var", args[1]).
					Str("index", session.EncodeIndexKey(ix)).
					Float64("value", value).
					Msg("Feed value set")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&index, "index", "", "comma-separated index, e.g. Liq,H2O")

	return cmd
}

// parseIndexFlag turns the --index flag into an index: empty means
// scalar, otherwise the comma-separated components are coerced the same
// way canonical index keys are.
func parseIndexFlag(raw string) engine.Index {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return session.DecodeIndexKey("(" + raw + ")")
}

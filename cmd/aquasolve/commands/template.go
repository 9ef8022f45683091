package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/stores"
	"github.com/aquasolve/aquasolve/pkg/templates"
)

func newTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Work with pre-built flowsheet templates",
		Long: `Work with pre-built flowsheet templates: ready-made definitions for
common treatment configurations that instantiate into ordinary
sessions and can then be edited like any other.`,
	}

	cmd.AddCommand(newTemplateListCommand())
	cmd.AddCommand(newTemplateShowCommand())
	cmd.AddCommand(newTemplateCreateCommand())

	return cmd
}

func newTemplateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				out := make([]templates.Template, 0, len(templates.Names()))
				for _, name := range templates.Names() {
					tpl, _ := templates.Lookup(name)
					out = append(out, tpl)
				}
				return printJSON(out)
			}
			for _, name := range templates.Names() {
				tpl, _ := templates.Lookup(name)
				fmt.Printf("%-20s %s\n", tpl.Name, tpl.Description)
			}
			return nil
		},
	}
}

func newTemplateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <template>",
		Short: "Print a template's flowsheet document",
		Example: `  # Inspect the RO train definition
  aquasolve template show ro_train`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := templates.Source(args[0])
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newTemplateCreateCommand() *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "create <template>",
		Short: "Instantiate a template as a new session",
		Example: `  # Create a session from the nanofiltration template
  aquasolve template create nf_softening --name plant-a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := templates.Instantiate(args[0], sessionName)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st stores.Store) error {
				if err := saveSession(ctx, st, sess); err != nil {
					return err
				}
				log.Info().
					Str("session_id", sess.ID).
					Str("template", args[0]).
					Str("name", sess.Name).
					Msg("Session created from template")
				if jsonOutput {
					return printJSON(sess)
				}
				fmt.Println(sess.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sessionName, "name", "", "session name (defaults to the template's)")

	return cmd
}

package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aquasolve",
		Short: "AquaSolve - Flowsheet Solve Orchestration Engine",
		Long: `AquaSolve orchestrates the solve hygiene pipeline for water treatment
flowsheets: degrees-of-freedom checking, scaling, sequential
initialization, diagnostics, solving and failure recovery.

Features:
  - Persistent flowsheet sessions (units, connections, translators)
  - Registry of water treatment unit and property pack types
  - Staged solve pipeline with relaxed re-solve and recovery
  - Structural and numerical diagnostics
  - Initialization ordering with recycle tear handling`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newSessionCommand())
	rootCmd.AddCommand(newTemplateCommand())
	rootCmd.AddCommand(newUnitCommand())
	rootCmd.AddCommand(newConnectCommand())
	rootCmd.AddCommand(newTranslatorCommand())
	rootCmd.AddCommand(newFixVarCommand())
	rootCmd.AddCommand(newUnfixVarCommand())
	rootCmd.AddCommand(newSetScalingCommand())
	rootCmd.AddCommand(newSetFeedCommand())
	rootCmd.AddCommand(newDOFCommand())
	rootCmd.AddCommand(newScalingReportCommand())
	rootCmd.AddCommand(newOrderCommand())
	rootCmd.AddCommand(newSolveCommand())
	rootCmd.AddCommand(newDiagnoseCommand())
	rootCmd.AddCommand(newSuggestRecoveryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

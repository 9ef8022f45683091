package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aquasolve/aquasolve/pkg/config"
	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/session"
	"github.com/aquasolve/aquasolve/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Watch flowsheet documents and re-validate on change",
		Long: `Watch a flowsheet document file or directory and re-validate on every
change: the document is parsed, the model built, and the
degrees-of-freedom check and structural diagnostics run. Validation
outcomes are logged; the command runs until interrupted.`,
		Example: `  # Re-validate a flowsheet file while editing it
  aquasolve watch ro-train.yaml

  # Watch a directory of flowsheet documents
  aquasolve watch ./flowsheets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return watchFlowsheets(cmd.Context(), cfg, args[0])
		},
	}
}

func watchFlowsheets(ctx context.Context, cfg *config.Config, path string) error {
	tel, err := telemetry.NewTelemetry(cfg.TelemetryBundle())
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())
	if err := tel.StartMetricsServer(); err != nil {
		log.Warn().Err(err).Msg("Failed to start metrics server")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(p)
			}
			return nil
		})
	} else {
		err = watcher.Add(path)
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	// Validate everything once up front, then re-validate on change.
	validateAll(cfg, path, info.IsDir())

	log.Info().Str("path", path).Msg("Watching flowsheet documents")

	// Debounce validation events
	var validateTimer *time.Timer
	validateDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Only re-validate on write or create events for YAML files
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if strings.HasSuffix(event.Name, ".yaml") || strings.HasSuffix(event.Name, ".yml") {
					log.Debug().
						Str("file", event.Name).
						Str("op", event.Op.String()).
						Msg("Flowsheet document changed")

					changed := event.Name
					if validateTimer != nil {
						validateTimer.Stop()
					}
					validateTimer = time.AfterFunc(validateDelay, func() {
						validateDocument(cfg, changed)
					})
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func validateAll(cfg *config.Config, path string, isDir bool) {
	if !isDir {
		validateDocument(cfg, path)
		return
	}
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			validateDocument(cfg, p)
		}
		return nil
	})
}

// validateDocument parses a flowsheet document, builds its model, and
// runs the cheap structural checks: degrees of freedom and structural
// diagnostics.
func validateDocument(cfg *config.Config, file string) {
	logger := log.With().Str("file", file).Logger()

	data, err := os.ReadFile(file)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read flowsheet document")
		return
	}
	sess, err := session.ParseDocument(data)
	if err != nil {
		logger.Error().Err(err).Msg("Flowsheet document invalid")
		return
	}
	result, err := buildModel(sess)
	if err != nil {
		logger.Error().Err(err).Msg("Model build failed")
		return
	}

	runner := newRunner(cfg, sess.Pipeline)
	dof := runner.CheckDOF(result.Model)
	diag, err := runner.Diagnose(result.Model, false)
	if err != nil {
		logger.Error().Err(err).Msg("Diagnostics failed")
		return
	}

	evt := logger.Info()
	if dof.Status != engine.DOFReady || !diag.Healthy {
		evt = logger.Warn()
	}
	evt.
		Str("name", sess.Name).
		Int("units", len(sess.Units)).
		Str("dof_status", string(dof.Status)).
		Int("dof", dof.DegreesOfFreedom).
		Bool("healthy", diag.Healthy).
		Int("build_warnings", len(result.Warnings)).
		Msg("Flowsheet validated")
	for _, s := range dof.Suggestions {
		logger.Info().Str("suggestion", s).Msg("Specification hint")
	}
}

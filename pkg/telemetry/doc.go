// Package telemetry provides observability instrumentation for the
// solve engine.
//
// The package integrates structured logging (zerolog), tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring pipeline runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Tracing - OpenTelemetry spans around pipeline stages
//  3. Metrics Collection - Prometheus metrics for runs, stages, and solves
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "aquasolve"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with run and session
// fields:
//
//	logger := tel.Logger.NewComponentLogger("pipeline")
//	logger = logger.WithRunID("run-123").WithSessionID("sess-456")
//	logger.Info("starting solve")
//	logger.WithError(err).Error("solve failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Tracing
//
// Pipeline runs and stages run inside spans:
//
//	ctx, span := tel.Tracer.StartRunSpan(ctx, runID, sessionID)
//	defer span.End()
//
//	err := telemetry.RecordStageOperation(ctx, runID, "solving", runStage)
//
// Supported exporters: stdout (development), none.
//
// # Metrics
//
// Prometheus metrics track pipeline behavior:
//
//	tel.Metrics.RecordRunStarted(sessionID)
//	tel.Metrics.RecordStageExecution("solving", "success", duration)
//	tel.Metrics.RecordSolve("optimal", duration)
//	tel.Metrics.RecordRunCompleted("completed", duration)
//
// # Events
//
// Events notify subscribers of run and stage transitions:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Printf("%s: %s\n", e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry

package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }},
		{"sampling rate above 1", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"metrics without address", func(c *Config) { c.Metrics.ListenAddress = "" }},
		{"zero event buffer", func(c *Config) { c.Events.BufferSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMetrics_DisabledIsNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// None of these should panic on a disabled instance.
	m.RecordRunStarted("sess-1")
	m.RecordRunCompleted("completed", time.Second)
	m.RecordStageExecution("solving", "success", time.Second)
	m.RecordSolve("optimal", time.Second)
	m.RecordRecoveryAttempt("relax_bounds", "recovered")
	m.RecordSessionCreated()
	m.RecordError("fatal", "INTERNAL_ERROR")
}

func TestNewTracer_DisabledAndStdout(t *testing.T) {
	disabled, err := NewTracer(TracingConfig{Enabled: false}, "test", "dev", "test")
	if err != nil {
		t.Fatalf("disabled tracer failed: %v", err)
	}
	ctx, span := disabled.Start(context.Background(), "op")
	span.End()
	if ctx == nil {
		t.Fatal("expected context from disabled tracer")
	}

	_, err = NewTracer(TracingConfig{
		Enabled:      true,
		Exporter:     "otlp",
		SamplingRate: 1,
	}, "test", "dev", "test")
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestEventPublisher_SyncDelivery(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:    true,
		BufferSize: 10,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var mu sync.Mutex
	var received []Event
	done := make(chan struct{}, 1)
	ep.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		done <- struct{}{}
	}, nil)

	if err := ep.PublishRunStarted("run-1", "sess-1"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTypeRunStarted {
		t.Errorf("expected %s, got %s", EventTypeRunStarted, received[0].Type)
	}
	if received[0].ID == "" || received[0].Timestamp.IsZero() {
		t.Error("expected ID and timestamp to be filled in")
	}
}

func TestEventPublisher_Filters(t *testing.T) {
	errorsOnly := FilterByLevel(EventLevelError)
	if errorsOnly(Event{Level: EventLevelInfo}) {
		t.Error("info event should not pass error-level filter")
	}
	if !errorsOnly(Event{Level: EventLevelError}) {
		t.Error("error event should pass error-level filter")
	}

	stageEvents := FilterByType(EventTypeStageFailed, EventTypeStageCompleted)
	if stageEvents(Event{Type: EventTypeRunStarted}) {
		t.Error("run event should not pass stage-type filter")
	}
	if !stageEvents(Event{Type: EventTypeStageFailed}) {
		t.Error("stage event should pass stage-type filter")
	}

	runFilter := FilterByRunID("run-1")
	if runFilter(Event{RunID: "run-2"}) {
		t.Error("unexpected run should not pass run filter")
	}
}

func TestEventPublisher_DisabledPublishIsNoOp(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}
	if err := ep.Publish(Event{Type: EventTypeError}); err != nil {
		t.Errorf("disabled publisher should accept events silently: %v", err)
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("disabled publisher shutdown failed: %v", err)
	}
}

func TestLogger_ComponentAndFields(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.NewComponentLogger("pipeline").
		WithRunID("run-1").
		WithSessionID("sess-1").
		WithStage("solving")
	if child == nil {
		t.Fatal("expected child logger")
	}

	ctx := logger.WithContext(context.Background())
	if FromContext(ctx) != logger {
		t.Error("expected logger round-trip through context")
	}
}

func TestNewTelemetry_BundleLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false
	cfg.Events.EnableAsync = false
	cfg.Events.FlushInterval = 0

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}

	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Error("expected telemetry round-trip through context")
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestRecordStageOperation_NoTelemetryFallsThrough(t *testing.T) {
	called := false
	err := RecordStageOperation(context.Background(), "run-1", "solving", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("RecordStageOperation failed: %v", err)
	}
	if !called {
		t.Error("stage function was not invoked")
	}
}

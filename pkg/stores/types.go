// Package stores persists flowsheet sessions and pipeline run records.
// The primary implementation is SQLite-backed; an in-memory variant
// exists for tests and ephemeral use.
package stores

import (
	"context"
	"time"
)

// SessionRecord is a persisted flowsheet session: the full session
// document as JSON plus the metadata columns queries filter on.
type SessionRecord struct {
	// ID is the session's unique identifier.
	ID string `json:"id"`

	// Name is the human-readable session name.
	Name string `json:"name"`

	// Status is the session lifecycle status string.
	Status string `json:"status"`

	// Document is the serialized session definition.
	Document []byte `json:"document"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	// ID is the run's unique identifier.
	ID string `json:"id"`

	// SessionID is the session the run solved.
	SessionID string `json:"session_id"`

	// Success indicates the pipeline completed.
	Success bool `json:"success"`

	// FinalState is the pipeline state when the run ended.
	FinalState string `json:"final_state"`

	// Message summarizes the run outcome.
	Message string `json:"message"`

	// History is the serialized stage result history.
	History []byte `json:"history"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run ended.
	CompletedAt time.Time `json:"completed_at"`
}

// Store is the persistence interface for sessions and runs.
type Store interface {
	// Init opens the underlying storage.
	Init(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error

	// SaveSession inserts or updates a session record.
	SaveSession(ctx context.Context, record *SessionRecord) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// ListSessions lists sessions newest-first with pagination.
	ListSessions(ctx context.Context, limit, offset int) ([]*SessionRecord, error)

	// DeleteSession deletes a session and its runs.
	DeleteSession(ctx context.Context, id string) error

	// CreateRun inserts a run record.
	CreateRun(ctx context.Context, record *RunRecord) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRunsBySession lists a session's runs newest-first.
	ListRunsBySession(ctx context.Context, sessionID string, limit, offset int) ([]*RunRecord, error)

	// HealthCheck verifies the storage is reachable.
	HealthCheck(ctx context.Context) error
}

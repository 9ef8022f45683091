package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds SQLite store configuration.
type Config struct {
	// Path is the database file path.
	Path string `json:"path" yaml:"path"`

	// MaxOpenConns limits open connections.
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections.
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`

	// ConnMaxLifetime limits connection lifetime.
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// SQLiteStore persists sessions and runs in a SQLite database.
type SQLiteStore struct {
	config Config
	db     *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a SQLite store with the given configuration.
func NewSQLiteStore(config Config) *SQLiteStore {
	return &SQLiteStore{config: config}
}

// Init opens the database and configures the connection pool.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.config.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetMaxIdleConns(s.config.MaxIdleConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// SaveSession inserts a session record or updates it if it already exists.
func (s *SQLiteStore) SaveSession(ctx context.Context, record *SessionRecord) error {
	query := `
		INSERT INTO sessions (id, name, status, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			document = excluded.document,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Name, record.Status, record.Document,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", record.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	query := `
		SELECT id, name, status, document, created_at, updated_at
		FROM sessions WHERE id = ?
	`
	record := &SessionRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Name, &record.Status, &record.Document,
		&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return record, nil
}

// ListSessions lists sessions ordered by most recently updated.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit, offset int) ([]*SessionRecord, error) {
	query := `
		SELECT id, name, status, document, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		record := &SessionRecord{}
		if err := rows.Scan(
			&record.ID, &record.Name, &record.Status, &record.Document,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return records, nil
}

// DeleteSession deletes a session. Runs cascade via the foreign key.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// CreateRun inserts a run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, record *RunRecord) error {
	query := `
		INSERT INTO runs (id, session_id, success, final_state, message, history, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.SessionID, record.Success, record.FinalState,
		record.Message, record.History,
		record.StartedAt.UTC(), record.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", record.ID, err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query := `
		SELECT id, session_id, success, final_state, message, history, started_at, completed_at
		FROM runs WHERE id = ?
	`
	record := &RunRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.SessionID, &record.Success, &record.FinalState,
		&record.Message, &record.History,
		&record.StartedAt, &record.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return record, nil
}

// ListRunsBySession lists a session's runs newest-first.
func (s *SQLiteStore) ListRunsBySession(ctx context.Context, sessionID string, limit, offset int) ([]*RunRecord, error) {
	query := `
		SELECT id, session_id, success, final_state, message, history, started_at, completed_at
		FROM runs
		WHERE session_id = ?
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record := &RunRecord{}
		if err := rows.Scan(
			&record.ID, &record.SessionID, &record.Success, &record.FinalState,
			&record.Message, &record.History,
			&record.StartedAt, &record.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return records, nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

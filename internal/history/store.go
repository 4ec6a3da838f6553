// Package history persists chat sessions to SQL. The store is best
// effort from the pipeline's point of view: a write failure is logged
// by the caller, never shown to the dealer.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/floorservicemsk/dealerchat/internal/chat"
	"github.com/floorservicemsk/dealerchat/internal/config"
)

// Message is one stored chat turn.
type Message struct {
	ID          int64             `json:"id"`
	SessionID   string            `json:"sessionId"`
	Role        string            `json:"role"`
	Content     string            `json:"content"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Store persists chat messages on database/sql, backed by sqlite or
// postgres depending on configuration.
type Store struct {
	db      *sql.DB
	driver  string
	logger  zerolog.Logger
	binds   func(n int) string
	nowFunc func() time.Time
}

// Open connects to the configured database and prepares the schema.
func Open(cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite", "":
		db, err = sql.Open("sqlite3", cfg.SQLite.Path)
		if err == nil && cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
	case "postgres":
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err == nil {
			if cfg.Postgres.MaxOpenConns > 0 {
				db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
			}
			if cfg.Postgres.MaxIdleConns > 0 {
				db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
			}
			if cfg.Postgres.ConnMaxLifetime > 0 {
				db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
			}
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:      db,
		driver:  cfg.Driver,
		logger:  logger,
		binds:   bindStyle(cfg.Driver),
		nowFunc: time.Now,
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// bindStyle returns the placeholder renderer for the driver: "?" for
// sqlite, "$1" style for postgres.
func bindStyle(driver string) func(int) string {
	if driver == "postgres" {
		return func(n int) string { return fmt.Sprintf("$%d", n) }
	}
	return func(int) string { return "?" }
}

// EnsureSchema creates the messages table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id          %s,
			session_id  TEXT NOT NULL,
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			attachments TEXT,
			created_at  TIMESTAMP NOT NULL
		)`, idColumn))
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id)`)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// AppendMessage stores one chat turn.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string, attachments []chat.Attachment) error {
	var attachmentsJSON sql.NullString
	if len(attachments) > 0 {
		data, err := json.Marshal(attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		attachmentsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := fmt.Sprintf(
		`INSERT INTO chat_messages (session_id, role, content, attachments, created_at) VALUES (%s, %s, %s, %s, %s)`,
		s.binds(1), s.binds(2), s.binds(3), s.binds(4), s.binds(5))

	_, err := s.db.ExecContext(ctx, query, sessionID, role, content, attachmentsJSON, s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Messages returns the session's messages in insertion order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	query := fmt.Sprintf(
		`SELECT id, session_id, role, content, attachments, created_at FROM chat_messages WHERE session_id = %s ORDER BY id`,
		s.binds(1))

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m           Message
			attachments sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if attachments.Valid {
			if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
				s.logger.Warn().Err(err).Int64("id", m.ID).Msg("corrupt attachments column")
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

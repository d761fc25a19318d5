// Package transcriptstore persists successful transcriptions. Writes are
// best-effort from the caller's point of view: a store failure never fails
// the user-facing interaction.
package transcriptstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ovozlabs/ovozd/internal/config"
	_ "modernc.org/sqlite"
)

// Record is one persisted transcription. Username may be empty; it is stored
// as NULL then.
type Record struct {
	ID        int64
	UserID    int64
	Username  string
	Language  string
	Text      string
	CreatedAt time.Time
}

// Store wraps the SQLite-backed transcription log.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store and creates the schema when missing.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS voice_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    username TEXT,
    language TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_voice_messages_created ON voice_messages(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Save inserts one transcription row. Rows are never updated or deleted.
func (s *Store) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voice_messages (user_id, username, language, text, created_at)
		 VALUES (?, NULLIF(?, ''), ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Language, rec.Text, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// ListRecent returns up to limit rows, newest first. Operator convenience,
// not part of the request path.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(username, ''), language, text, created_at
		 FROM voice_messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.Language, &rec.Text, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

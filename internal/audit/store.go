// Package audit records message deletions and edits to an embedded database
// and mirrors them as embeds into the guild's log channel.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// Event kinds stored in the audit table.
const (
	KindDelete     = "delete"
	KindBulkDelete = "bulk_delete"
	KindEdit       = "edit"
)

// Record is one audit trail entry.
type Record struct {
	ID          int64
	Kind        string
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	Content     string
	ContentWas  string
	Attachments string
	Count       int
	CreatedAt   time.Time
}

// Store persists audit records in a single-table embedded database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path and applies
// pending schema migrations from migrationsDir.
func Open(path, migrationsDir string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handler fire.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db, migrationsDir); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB, dir string) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends one record to the audit trail.
func (s *Store) Insert(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(kind, guild_id, channel_id, message_id, author_id, content, content_was, attachments, count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.GuildID, r.ChannelID, r.MessageID, r.AuthorID,
		r.Content, r.ContentWas, r.Attachments, r.Count, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the newest records for a guild, newest first.
func (s *Store) Recent(ctx context.Context, guildID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, guild_id, channel_id, message_id, author_id,
		       content, content_was, attachments, count, created_at
		FROM audit_events
		WHERE guild_id = ?
		ORDER BY id DESC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Kind, &r.GuildID, &r.ChannelID, &r.MessageID,
			&r.AuthorID, &r.Content, &r.ContentWas, &r.Attachments, &r.Count, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByKind returns how many events of each kind a guild has accumulated.
func (s *Store) CountByKind(ctx context.Context, guildID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM audit_events WHERE guild_id = ? GROUP BY kind`, guildID)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Package sqlite is the durable Store implementation, backed by an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the database connection.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer. One shared connection lets database/sql
	// serialize callers instead of having them fight for write locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for i, name := range names {
		version := i + 1
		if version <= current {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *core.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, status, summary, created_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Status, conv.Summary, conv.CreatedAt.UTC(), nullTime(conv.EndedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, status, summary, created_at, ended_at
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *Store) ListConversations(ctx context.Context, filter store.ListFilter) ([]*core.Conversation, error) {
	query := `SELECT id, title, status, summary, created_at, ended_at FROM conversations WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.To.UTC())
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*core.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *Store) UpdateConversation(ctx context.Context, conv *core.Conversation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, summary = ?, ended_at = ? WHERE id = ?`,
		conv.Status, conv.Summary, nullTime(conv.EndedAt), conv.ID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg *core.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM conversations WHERE id = ?", conversationID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return core.ErrNotFound
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?",
		conversationID).Scan(&msg.Seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conversationID, msg.Seq, msg.Role, msg.Content, msg.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*core.Conversation, error) {
	var conv core.Conversation
	var ended sql.NullTime
	err := row.Scan(&conv.ID, &conv.Title, &conv.Status, &conv.Summary, &conv.CreatedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		conv.EndedAt = &t
	}
	return &conv, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"eilo/internal/clock"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
	hub   *hub
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string, c clock.Clock) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer keeps transcript stamps and settings merges serialized.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, clock: c, hub: newHub()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(namespace, user_id, timestamp);

	CREATE TABLE IF NOT EXISTS settings (
		namespace TEXT NOT NULL,
		user_id TEXT NOT NULL,
		doc TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, user_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage inserts a message stamped after the user's latest one.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID string, role Role, text string) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var lastMillis sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM messages WHERE namespace = ? AND user_id = ?`,
		Namespace, userID).Scan(&lastMillis)
	if err != nil {
		return Message{}, fmt.Errorf("read last timestamp: %w", err)
	}
	var last time.Time
	if lastMillis.Valid {
		last = time.UnixMilli(lastMillis.Int64).UTC()
	}

	msg := Message{
		ID:        strings.ToLower(ulid.Make().String()),
		Role:      role,
		Text:      text,
		Timestamp: nextStamp(s.clock.Now(), last),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, namespace, user_id, role, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, Namespace, userID, string(msg.Role), msg.Text, msg.Timestamp.UnixMilli())
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	msgs, err := queryMessages(ctx, tx, userID)
	if err != nil {
		return Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit append: %w", err)
	}

	s.hub.publish(userID, msgs)
	return msg, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMessages(ctx context.Context, q queryer, userID string) ([]Message, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, role, text, timestamp FROM messages
		 WHERE namespace = ? AND user_id = ? ORDER BY timestamp ASC, id ASC`,
		Namespace, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var msg Message
		var role string
		var millis int64
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &millis); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = Role(role)
		msg.Timestamp = time.UnixMilli(millis).UTC()
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Messages returns the user's transcript, oldest first.
func (s *SQLiteStore) Messages(ctx context.Context, userID string) ([]Message, error) {
	return queryMessages(ctx, s.db, userID)
}

// SubscribeMessages streams transcript snapshots until ctx is done.
func (s *SQLiteStore) SubscribeMessages(ctx context.Context, userID string) (<-chan []Message, error) {
	msgs, err := s.Messages(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, userID, msgs)
}

// GetSettings returns the stored document, or defaults for a new user.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (Settings, error) {
	return getSettings(ctx, s.db, userID)
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSettings(ctx context.Context, q rowQueryer, userID string) (Settings, error) {
	var doc string
	err := q.QueryRowContext(ctx,
		`SELECT doc FROM settings WHERE namespace = ? AND user_id = ?`,
		Namespace, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(doc), &settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings.clone(), nil
}

// SetSettings merges patch into the stored document in one transaction.
func (s *SQLiteStore) SetSettings(ctx context.Context, userID string, patch SettingsPatch) (Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("begin settings: %w", err)
	}
	defer tx.Rollback()

	current, err := getSettings(ctx, tx, userID)
	if err != nil {
		return Settings{}, err
	}
	next := current.Apply(patch)

	doc, err := json.Marshal(next)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (namespace, user_id, doc, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, user_id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		Namespace, userID, string(doc), s.clock.Now().Unix())
	if err != nil {
		return Settings{}, fmt.Errorf("write settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Settings{}, fmt.Errorf("commit settings: %w", err)
	}
	return next, nil
}

// Close closes subscriptions and the database.
func (s *SQLiteStore) Close() error {
	s.hub.close()
	return s.db.Close()
}

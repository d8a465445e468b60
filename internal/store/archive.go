// Package store keeps a local SQLite archive of chat transcripts so past
// sessions can be listed and replayed from the command line.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"stratege/internal/transcript"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Session is an archived chat session.
type Session struct {
	ID         string
	Label      string
	APIURL     string
	ScenarioID int64
	StartedAt  time.Time
	UpdatedAt  time.Time
	Turns      int
}

// Turn is one archived transcript entry.
type Turn struct {
	Seq         int
	EntryID     string
	Author      transcript.Author
	Kind        transcript.Kind
	Widget      transcript.Widget
	Text        string
	PayloadJSON string
	ScenarioID  int64
	CreatedAt   time.Time
}

// Archive is the SQLite-backed session archive.
type Archive struct {
	mu  sync.Mutex
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens or creates the archive at path. ":memory:" gives a private
// in-memory database.
func Open(path string, log *zap.Logger) (*Archive, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if err := migrate(db, log); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("archive opened", zap.String("path", path))
	return &Archive{db: db, log: log, now: time.Now}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// BeginSession creates a new session row and returns its id.
func (a *Archive) BeginSession(ctx context.Context, label, apiURL string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	ts := a.now().UTC().Format(timeLayout)
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions (id, label, api_url, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, label, apiURL, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	a.log.Debug("session started", zap.String("session_id", id))
	return id, nil
}

// AppendTurn stores e as the next turn of the session. Widget payloads are
// kept as JSON when they can be encoded.
func (a *Archive) AppendTurn(ctx context.Context, sessionID string, e transcript.Entry) error {
	payload := ""
	if e.Payload != nil {
		if b, err := json.Marshal(e.Payload); err == nil {
			payload = string(b)
		} else {
			a.log.Debug("payload not archived", zap.String("entry_id", e.ID), zap.Error(err))
		}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?,
			scenario_id = CASE WHEN ? != 0 THEN ? ELSE scenario_id END
		 WHERE id = ?`,
		a.now().UTC().Format(timeLayout), e.ScenarioID, e.ScenarioID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, entry_id, author, kind, widget, text, payload_json, scenario_id, created_at)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ? FROM turns WHERE session_id = ?`,
		sessionID, e.ID, string(e.Author), string(e.Kind), string(e.Widget), e.Text, payload,
		e.ScenarioID, created.UTC().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return tx.Commit()
}

// ListSessions returns sessions, most recently updated first. limit <= 0
// means 50.
func (a *Archive) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT s.id, s.label, s.api_url, s.scenario_id, s.started_at, s.updated_at,
			(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at DESC, s.rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var started, updated string
		if err := rows.Scan(&s.ID, &s.Label, &s.APIURL, &s.ScenarioID, &started, &updated, &s.Turns); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		s.StartedAt, _ = time.Parse(timeLayout, started)
		s.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Turns returns the turns of a session in order.
func (a *Archive) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var exists int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, entry_id, author, kind, widget, text, payload_json, scenario_id, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var author, kind, widget, created string
		if err := rows.Scan(&t.Seq, &t.EntryID, &author, &kind, &widget, &t.Text, &t.PayloadJSON, &t.ScenarioID, &created); err != nil {
			return nil, fmt.Errorf("load turns: %w", err)
		}
		t.Author = transcript.Author(author)
		t.Kind = transcript.Kind(kind)
		t.Widget = transcript.Widget(widget)
		t.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its turns.
func (a *Archive) DeleteSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	// Older databases may have been created without foreign keys enforced.
	if _, err := a.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

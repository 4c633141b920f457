package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xtding233/heelshift/internal/model"
)

var ErrNoRevision = errors.New("revision not found")

// History keeps every saved document in a sqlite table so earlier
// configurations can be restored.
type History struct {
	db *sql.DB
}

// Revision is one saved document.
type Revision struct {
	ID        int64     `json:"id"`
	Reason    string    `json:"reason"`
	SavedAt   time.Time `json:"saved_at"`
	SizeBytes int       `json:"size_bytes"`
}

func OpenHistory(path string) (*History, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := initHistory(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

func initHistory(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS revisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reason TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			document BLOB NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) Close() error { return h.db.Close() }

// Record stores doc and returns the new revision id.
func (h *History) Record(ctx context.Context, doc model.Document, reason string, now time.Time) (int64, error) {
	b, err := encode(doc)
	if err != nil {
		return 0, err
	}
	res, err := h.db.ExecContext(ctx,
		`INSERT INTO revisions (reason, saved_at, document) VALUES (?, ?, ?)`,
		reason, now.UTC().UnixMilli(), b)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns the newest revisions first, without document bodies.
func (h *History) List(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, reason, saved_at, length(document) FROM revisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var ms int64
		if err := rows.Scan(&r.ID, &r.Reason, &ms, &r.SizeBytes); err != nil {
			return nil, err
		}
		r.SavedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get loads the document stored in revision id.
func (h *History) Get(ctx context.Context, id int64) (model.Document, error) {
	var b []byte
	err := h.db.QueryRowContext(ctx, `SELECT document FROM revisions WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, ErrNoRevision
	}
	if err != nil {
		return model.Document{}, err
	}
	doc, err := decode(b)
	if err != nil {
		return model.Document{}, fmt.Errorf("revision %d: %w", id, err)
	}
	return doc, nil
}

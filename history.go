package jerseyfolio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/eringen/jerseyfolio/catalog"
)

// Revision is a stored snapshot of a document, taken just before the
// document was overwritten.
type Revision struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Reason    string    `json:"reason"`
	Items     int       `json:"items"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"-"`
}

// History keeps document revisions in SQLite, pruned to the newest keep per
// document.
type History struct {
	db   *sql.DB
	keep int
	now  func() time.Time
}

// OpenHistory opens (or creates) the revision database at path.
func OpenHistory(path string, keep int) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	h := &History{db: db, keep: keep, now: time.Now}
	if err := h.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) ensureSchema() error {
	_, err := h.db.Exec(`
CREATE TABLE IF NOT EXISTS revisions (
    id TEXT PRIMARY KEY,
    document TEXT NOT NULL,
    reason TEXT NOT NULL,
    items INTEGER NOT NULL,
    size INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_document ON revisions(document, id);
`)
	return err
}

// Record stores data as a revision of doc and prunes older revisions.
func (h *History) Record(doc Document, reason string, data []byte) (Revision, error) {
	now := h.now().UTC()
	rev := Revision{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Document:  string(doc),
		Reason:    reason,
		Items:     countItems(data),
		Size:      len(data),
		CreatedAt: now,
		Data:      data,
	}
	_, err := h.db.Exec(`INSERT INTO revisions (id, document, reason, items, size, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Document, rev.Reason, rev.Items, rev.Size, now.Format(time.RFC3339Nano), data)
	if err != nil {
		return Revision{}, err
	}
	if err := h.prune(doc); err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func (h *History) prune(doc Document) error {
	if h.keep <= 0 {
		return nil
	}
	_, err := h.db.Exec(`DELETE FROM revisions WHERE document = ? AND id NOT IN (
		SELECT id FROM revisions WHERE document = ? ORDER BY id DESC LIMIT ?)`, string(doc), string(doc), h.keep)
	return err
}

// List returns revisions newest first, limited to doc when it is not empty.
// Data is not loaded.
func (h *History) List(ctx context.Context, doc Document) ([]Revision, error) {
	query := `SELECT id, document, reason, items, size, created_at FROM revisions`
	var args []any
	if doc != "" {
		query += ` WHERE document = ?`
		args = append(args, string(doc))
	}
	query += ` ORDER BY id DESC`
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		var rev Revision
		var created string
		if err := rows.Scan(&rev.ID, &rev.Document, &rev.Reason, &rev.Items, &rev.Size, &created); err != nil {
			return nil, err
		}
		rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// Get returns one revision including its data.
func (h *History) Get(ctx context.Context, id string) (Revision, error) {
	var rev Revision
	var created string
	err := h.db.QueryRowContext(ctx, `SELECT id, document, reason, items, size, created_at, data FROM revisions WHERE id = ?`, id).
		Scan(&rev.ID, &rev.Document, &rev.Reason, &rev.Items, &rev.Size, &created, &rev.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, fmt.Errorf("revision %s: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return Revision{}, err
	}
	rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return rev, nil
}

// Restore writes revision id back through s. The document it replaces is
// itself recorded, so a restore can be undone.
func (h *History) Restore(ctx context.Context, s *Store, id string) (Revision, error) {
	rev, err := h.Get(ctx, id)
	if err != nil {
		return Revision{}, err
	}
	doc, ok := ParseDocument(rev.Document)
	if !ok {
		return Revision{}, fmt.Errorf("%w: revision %s has unknown document %q", catalog.ErrInvalid, id, rev.Document)
	}
	if err := s.WriteRaw(doc, rev.Data, "restore "+id); err != nil {
		return Revision{}, err
	}
	return rev, nil
}

func countItems(data []byte) int {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return 0
	}
	return len(items)
}

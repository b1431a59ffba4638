package jerseyfolio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/catalog"
)

// Document names one of the catalog's JSON files.
type Document string

const (
	DocJerseys    Document = "jerseys.json"
	DocCategories Document = "categories.json"
	DocTags       Document = "tags.json"
)

// Documents lists every catalog document in load order.
var Documents = []Document{DocJerseys, DocCategories, DocTags}

// ParseDocument returns the document named by s, accepting the name with or
// without the .json extension.
func ParseDocument(s string) (Document, bool) {
	for _, d := range Documents {
		if s == string(d) || s+".json" == string(d) {
			return d, true
		}
	}
	return "", false
}

var defaultCategories = []catalog.Category{
	{ID: "domicile", Name: "Domicile", Color: "#8B1538"},
	{ID: "exterieur", Name: "Extérieur", Color: "#000000"},
	{ID: "speciaux", Name: "Spéciaux", Color: "#FFD700"},
}

var defaultTags = []catalog.Tag{
	{ID: "tag_1", Name: "Nouveau", Color: "#00FF00"},
	{ID: "tag_2", Name: "Populaire", Color: "#FF6B6B"},
	{ID: "tag_3", Name: "Limité", Color: "#FFD700"},
}

// Store keeps the catalog as JSON documents in a directory. Writes are
// serialized and atomic; when a History is attached, the document being
// replaced is recorded before every overwrite.
type Store struct {
	dir     string
	history *History

	mu    sync.Mutex
	wrote map[Document]time.Time
	now   func() time.Time
	log   *zap.Logger
}

// NewStore opens the documents in dir, creating the directory and seeding
// any missing document with its defaults.
func NewStore(dir string, history *History) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:     dir,
		history: history,
		wrote:   make(map[Document]time.Time),
		now:     time.Now,
		log:     zap.NewNop(),
	}
	seeds := map[Document]any{
		DocJerseys:    []catalog.Jersey{},
		DocCategories: defaultCategories,
		DocTags:       defaultTags,
	}
	for _, doc := range Documents {
		if _, err := os.Stat(s.Path(doc)); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		data, err := encodeDocument(seeds[doc])
		if err != nil {
			return nil, err
		}
		if err := atomic.WriteFile(s.Path(doc), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("seed %s: %w", doc, err)
		}
	}
	return s, nil
}

// SetLogger sets the logger that reports jerseys skipped while decoding.
func (s *Store) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// Dir returns the directory holding the documents.
func (s *Store) Dir() string { return s.dir }

// Path returns the file path of doc.
func (s *Store) Path(doc Document) string {
	return filepath.Join(s.dir, string(doc))
}

// Raw returns the bytes of doc as stored.
func (s *Store) Raw(doc Document) ([]byte, error) {
	return os.ReadFile(s.Path(doc))
}

// Jerseys decodes jerseys.json. Elements that are not valid jerseys are
// logged and left out.
func (s *Store) Jerseys() ([]catalog.Jersey, error) {
	items, _, err := s.jerseys()
	return items, err
}

func (s *Store) jerseys() ([]catalog.Jersey, []catalog.SkippedJersey, error) {
	data, err := s.Raw(DocJerseys)
	if err != nil {
		return nil, nil, err
	}
	items, skipped, err := catalog.DecodeJerseys(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", DocJerseys, err)
	}
	for _, sk := range skipped {
		s.log.Warn("skipping malformed jersey",
			zap.String("document", string(DocJerseys)),
			zap.Int("index", sk.Index),
			zap.Error(sk.Err),
		)
	}
	return items, skipped, nil
}

// Categories decodes categories.json.
func (s *Store) Categories() ([]catalog.Category, error) {
	var defs []catalog.Category
	if err := s.decode(DocCategories, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Tags decodes tags.json.
func (s *Store) Tags() ([]catalog.Tag, error) {
	var defs []catalog.Tag
	if err := s.decode(DocTags, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (s *Store) decode(doc Document, out any) error {
	data, err := s.Raw(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", doc, err)
	}
	return nil
}

// SaveJerseys replaces jerseys.json.
func (s *Store) SaveJerseys(items []catalog.Jersey, reason string) error {
	if items == nil {
		items = []catalog.Jersey{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(DocJerseys, items, reason)
}

// UpdateJerseys runs a read-modify-write of jerseys.json under the store
// lock. Returning an error from fn leaves the document untouched. Elements
// that failed to decode are written back unchanged near their old position.
func (s *Store) UpdateJerseys(reason string, fn func([]catalog.Jersey) ([]catalog.Jersey, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, skipped, err := s.jerseys()
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	if len(skipped) == 0 {
		return s.write(DocJerseys, items, reason)
	}
	return s.write(DocJerseys, withSkipped(items, skipped), reason)
}

func withSkipped(items []catalog.Jersey, skipped []catalog.SkippedJersey) []any {
	out := make([]any, 0, len(items)+len(skipped))
	for _, it := range items {
		out = append(out, it)
	}
	for _, sk := range skipped {
		out = slices.Insert(out, min(sk.Index, len(out)), any(sk.Raw))
	}
	return out
}

// UpdateCategories runs a read-modify-write of categories.json.
func (s *Store) UpdateCategories(reason string, fn func([]catalog.Category) ([]catalog.Category, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.Categories()
	if err != nil {
		return err
	}
	defs, err = fn(defs)
	if err != nil {
		return err
	}
	return s.write(DocCategories, defs, reason)
}

// UpdateTags runs a read-modify-write of tags.json.
func (s *Store) UpdateTags(reason string, fn func([]catalog.Tag) ([]catalog.Tag, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs, err := s.Tags()
	if err != nil {
		return err
	}
	defs, err = fn(defs)
	if err != nil {
		return err
	}
	return s.write(DocTags, defs, reason)
}

// WriteRaw replaces doc with data, which must be a JSON array.
func (s *Store) WriteRaw(doc Document, data []byte, reason string) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: %s is not a JSON array: %v", catalog.ErrInvalid, doc, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeBytes(doc, data, reason)
}

// WroteRecently reports whether the store itself wrote doc within d.
func (s *Store) WroteRecently(doc Document, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.wrote[doc]
	return ok && s.now().Sub(at) < d
}

// write must be called with s.mu held.
func (s *Store) write(doc Document, v any, reason string) error {
	data, err := encodeDocument(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc, err)
	}
	return s.writeBytes(doc, data, reason)
}

func (s *Store) writeBytes(doc Document, data []byte, reason string) error {
	if s.history != nil {
		if prev, err := s.Raw(doc); err == nil {
			if _, err := s.history.Record(doc, reason, prev); err != nil {
				return fmt.Errorf("record revision of %s: %w", doc, err)
			}
		}
	}
	s.wrote[doc] = s.now()
	if err := atomic.WriteFile(s.Path(doc), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", doc, err)
	}
	return nil
}

// encodeDocument renders v as UTF-8 JSON with a 2-space indent and no HTML
// escaping, followed by a newline.
func encodeDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

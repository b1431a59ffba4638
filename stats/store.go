package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ViewCount is the number of counted views of one jersey.
type ViewCount struct {
	JerseyID string `json:"id"`
	Views    int    `json:"views"`
}

// Breakdown groups counted views by browser and device.
type Breakdown struct {
	Browsers map[string]int `json:"browsers"`
	Devices  map[string]int `json:"devices"`
}

// Store provides database operations for view counts.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log *zap.Logger

	saltOnce sync.Once
	salt     string
	saltErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to bucket views by day.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the cleanup scheduler.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore opens (or creates) the stats database at path.
func NewStore(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS jersey_views (
			jersey_id TEXT NOT NULL,
			visitor_id TEXT NOT NULL,
			day TEXT NOT NULL,
			browser TEXT NOT NULL,
			device TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			PRIMARY KEY (jersey_id, visitor_id, day)
		);

		CREATE INDEX IF NOT EXISTS idx_jersey_views_day ON jersey_views(day);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Salt loads the installation's hash salt, generating and persisting one on
// first use.
func (s *Store) Salt(ctx context.Context) (string, error) {
	s.saltOnce.Do(func() {
		v, err := s.GetSetting(ctx, "hash_salt")
		if err != nil {
			s.saltErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if v == "" {
			if v, err = newSalt(); err != nil {
				s.saltErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			if err := s.SetSetting(ctx, "hash_salt", v); err != nil {
				s.saltErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		s.salt = v
	})
	return s.salt, s.saltErr
}

// RecordView counts a view of jerseyID unless the client is a bot or the
// same visitor already viewed it today. It reports whether the view counted.
func (s *Store) RecordView(ctx context.Context, jerseyID, ip, userAgent string) (bool, error) {
	if IsBot(userAgent) {
		return false, nil
	}
	salt, err := s.Salt(ctx)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO jersey_views (jersey_id, visitor_id, day, browser, device, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		jerseyID, VisitorID(salt, ip, userAgent), now.Format("2006-01-02"), Browser(userAgent), Device(userAgent), now)
	if err != nil {
		return false, fmt.Errorf("record view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Views returns the counted views of one jersey.
func (s *Store) Views(ctx context.Context, jerseyID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jersey_views WHERE jersey_id = ?`, jerseyID).Scan(&n)
	return n, err
}

// Counts returns counted views keyed by jersey id.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT jersey_id, COUNT(*) FROM jersey_views GROUP BY jersey_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// Popular returns the n most viewed jerseys, most viewed first. Ties are
// broken by id.
func (s *Store) Popular(ctx context.Context, n int) ([]ViewCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT jersey_id, COUNT(*) AS views FROM jersey_views
		GROUP BY jersey_id ORDER BY views DESC, jersey_id ASC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ViewCount
	for rows.Next() {
		var vc ViewCount
		if err := rows.Scan(&vc.JerseyID, &vc.Views); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// Breakdown groups all counted views by browser and device.
func (s *Store) Breakdown(ctx context.Context) (Breakdown, error) {
	b := Breakdown{Browsers: make(map[string]int), Devices: make(map[string]int)}
	for col, dst := range map[string]map[string]int{"browser": b.Browsers, "device": b.Devices} {
		rows, err := s.db.QueryContext(ctx, `SELECT `+col+`, COUNT(*) FROM jersey_views GROUP BY `+col)
		if err != nil {
			return Breakdown{}, err
		}
		for rows.Next() {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return Breakdown{}, err
			}
			dst[k] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return Breakdown{}, err
		}
	}
	return b, nil
}

// CleanupOldViews removes views older than the retention period.
func (s *Store) CleanupOldViews(ctx context.Context, retentionDays int) error {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jersey_views WHERE day < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup jersey_views: %w", err)
	}
	return nil
}

// StartCleanupScheduler runs periodic cleanup of old views. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := s.CleanupOldViews(context.Background(), retentionDays); err != nil {
					s.log.Warn("stats cleanup failed", zap.Error(err))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

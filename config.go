package jerseyfolio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/mirror"
)

// SiteConfig holds all configuration for a jerseyfolio server.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // default "Jerseyfolio"
	URL         string `env:"SITE_URL"`         // canonical URL, default "http://localhost:3000"
	Description string `env:"SITE_DESCRIPTION"` // used by the feed and meta tags

	Addr      string `env:"ADDR"`       // default ":3000"
	DataDir   string `env:"DATA_DIR"`   // jerseys.json, categories.json, tags.json; default "data"
	AssetsDir string `env:"ASSETS_DIR"` // served at /assets; default "assets"

	DatabasePath      string `env:"DATABASE_PATH"`       // revisions; default "<DataDir>/revisions.db"
	StatsDatabasePath string `env:"STATS_DATABASE_PATH"` // default "<DataDir>/stats.db"
	StatsEnabled      bool   `env:"STATS_ENABLED" envDefault:"true"`

	AdminUsername     string        `env:"ADMIN_USERNAME"` // default "admin"
	AdminPassword     string        `env:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"` // bcrypt, preferred over AdminPassword
	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT"` // default 1h
	CookieSecure      bool          `env:"COOKIE_SECURE"`

	CacheTTL      time.Duration `env:"CACHE_TTL"`      // default 5m
	RevisionsKeep int           `env:"REVISIONS_KEEP"` // default 50

	ImagesBaseURL     string `env:"IMAGES_BASE_URL"`
	ThumbnailsBaseURL string `env:"THUMBNAILS_BASE_URL"`
	ItemsPerPage      int    `env:"ITEMS_PER_PAGE"`

	AMQPURL      string `env:"AMQP_URL"` // empty disables the relay
	AMQPExchange string `env:"AMQP_EXCHANGE"`

	S3 S3Config

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// S3Config locates the bucket images are mirrored to.
type S3Config struct {
	Endpoint      string `env:"S3_ENDPOINT"`
	Bucket        string `env:"S3_BUCKET"`
	Region        string `env:"S3_REGION"`
	AccessKey     string `env:"S3_ACCESS_KEY"`
	SecretKey     string `env:"S3_SECRET_KEY"`
	PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	Prefix        string `env:"S3_PREFIX"`
}

// LoadConfig reads configuration from the environment, loading .env first
// when it exists.
func LoadConfig() (SiteConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return SiteConfig{}, fmt.Errorf("jerseyfolio: load .env: %w", err)
		}
	}
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("jerseyfolio: parse environment: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Jerseyfolio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "assets"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "revisions.db")
	}
	if c.StatsDatabasePath == "" {
		c.StatsDatabasePath = filepath.Join(c.DataDir, "stats.db")
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = time.Hour
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.RevisionsKeep == 0 {
		c.RevisionsKeep = 50
	}
	if c.ItemsPerPage <= 0 {
		c.ItemsPerPage = catalog.DefaultPerPage
	}
}

// Display returns the display settings derived from the configuration.
func (c SiteConfig) Display() catalog.Settings {
	return catalog.DefaultSettings().Merge(catalog.PublicConfig{
		ImagesBaseURL:     c.ImagesBaseURL,
		ThumbnailsBaseURL: c.ThumbnailsBaseURL,
		ItemsPerPage:      c.ItemsPerPage,
	})
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory served at /public (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the application logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) {
		a.Logger = log
	}
}

// WithRelay fans broadcast messages out to other server instances.
func WithRelay(r broadcast.Relay) Option {
	return func(a *App) {
		a.relay = r
	}
}

// WithMirror copies every uploaded image and thumbnail to object storage.
func WithMirror(m *mirror.Mirror) Option {
	return func(a *App) {
		a.mirror = m
	}
}

// Mirror returns the object storage settings in the form the mirror
// package takes.
func (c S3Config) Mirror() mirror.Config {
	return mirror.Config{
		Endpoint:      c.Endpoint,
		Bucket:        c.Bucket,
		Region:        c.Region,
		AccessKey:     c.AccessKey,
		SecretKey:     c.SecretKey,
		PublicBaseURL: c.PublicBaseURL,
		Prefix:        c.Prefix,
	}
}

// WithClock overrides the time source used for sessions and stats.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// Package jerseyfolio serves a jersey catalog: the JSON documents the
// clients load, the admin API that edits them, server-side gallery and
// detail pages, and a live event stream announcing every change.
//
// The HTML surface is provided through the ViewFuncs struct and defaults to
// the views package, so a site can swap in its own templ components while
// jerseyfolio keeps the handlers, middleware and storage.
package jerseyfolio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/mirror"
	"github.com/eringen/jerseyfolio/stats"
	"github.com/eringen/jerseyfolio/views"
)

// ViewFuncs holds the templ components rendered by the HTML handlers.
type ViewFuncs struct {
	Gallery        func(p views.GalleryPage) templ.Component
	Detail         func(p views.DetailPage) templ.Component
	AdminLogin     func(p views.LoginPage) templ.Component
	AdminDashboard func(p views.AdminPage) templ.Component
	NotFound       func(site views.Site) templ.Component
	ServerError    func(site views.Site) templ.Component
}

// DefaultViews renders with the views package.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Gallery:        views.Gallery,
		Detail:         views.Detail,
		AdminLogin:     views.AdminLogin,
		AdminDashboard: views.AdminDashboard,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
	}
}

// WithViews replaces the HTML components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// statsRetentionDays bounds how long daily view rows are kept.
const statsRetentionDays = 365

// App is the central jerseyfolio application. It wires together the
// document store, revisions, cache, broadcast hub, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	History *History
	Cache   *CatalogCache
	Hub     *broadcast.Hub
	Stats   *stats.Store
	Logger  *zap.Logger
	Views   ViewFuncs

	settingsMu sync.RWMutex
	settings   catalog.Settings

	loginLimiter *LoginLimiter
	watcher      *DataWatcher
	relay        broadcast.Relay
	ownRelay     *broadcast.AMQPRelay
	mirror       *mirror.Mirror
	customRoutes []func(*App)
	staticDir    string
	now          func() time.Time
	stopStats    func()
	cancel       context.CancelFunc
}

// New creates an App with the given configuration. Nothing is opened until
// Init or Start.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true

	a := &App{
		Config:    cfg,
		Echo:      e,
		Views:     DefaultViews(),
		Logger:    zap.NewNop(),
		settings:  cfg.Display(),
		staticDir: "public",
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.Hub = broadcast.NewHub(
		broadcast.WithLogger(a.Logger.Named("broadcast")),
		broadcast.WithClock(a.now),
	)
	return a
}

// Init opens storage, starts the background workers and registers the
// middleware and routes. It is called by Start; tests call it directly and
// drive a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if a.Config.AdminPassword == "" && a.Config.AdminPasswordHash == "" {
		return errors.New("jerseyfolio: AdminPassword or AdminPasswordHash is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("jerseyfolio: SessionSecret is required")
	}
	ctx, a.cancel = context.WithCancel(ctx)

	history, err := OpenHistory(a.Config.DatabasePath, a.Config.RevisionsKeep)
	if err != nil {
		return fmt.Errorf("jerseyfolio: open revisions: %w", err)
	}
	a.History = history

	store, err := NewStore(a.Config.DataDir, history)
	if err != nil {
		return fmt.Errorf("jerseyfolio: init store: %w", err)
	}
	store.SetLogger(a.Logger.Named("store"))
	a.Store = store

	a.Cache = NewCatalogCache(a.Store, a.Config.CacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Config.StatsEnabled {
		st, err := stats.NewStore(a.Config.StatsDatabasePath,
			stats.WithClock(a.now),
			stats.WithLogger(a.Logger.Named("stats")),
		)
		if err != nil {
			return fmt.Errorf("jerseyfolio: init stats: %w", err)
		}
		if _, err := st.Salt(ctx); err != nil {
			st.Close()
			return fmt.Errorf("jerseyfolio: init stats salt: %w", err)
		}
		a.Stats = st
		a.stopStats = st.StartCleanupScheduler(statsRetentionDays, 24*time.Hour)
	}

	if err := a.startRelay(ctx); err != nil {
		return err
	}

	watcher, err := NewDataWatcher(a.Store, a.externalChange, a.Logger.Named("watcher"))
	if err != nil {
		return fmt.Errorf("jerseyfolio: init watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		watcher.Stop()
		return fmt.Errorf("jerseyfolio: start watcher: %w", err)
	}
	a.watcher = watcher

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) startRelay(ctx context.Context) error {
	if a.relay == nil && a.Config.AMQPURL != "" {
		r, err := broadcast.DialAMQP(a.Config.AMQPURL, a.Config.AMQPExchange, a.Logger.Named("amqp"))
		if err != nil {
			return fmt.Errorf("jerseyfolio: dial amqp: %w", err)
		}
		a.ownRelay = r
		a.relay = r
	}
	if a.relay == nil {
		return nil
	}
	a.Hub.SetRelay(a.relay)
	if r, ok := a.relay.(*broadcast.AMQPRelay); ok {
		go func() {
			if err := r.Run(ctx, a.Hub); err != nil && ctx.Err() == nil {
				a.Logger.Error("amqp relay stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// externalChange handles a document edited outside the server.
func (a *App) externalChange(doc Document) {
	a.Logger.Info("data document changed on disk", zap.String("document", string(doc)))
	a.Cache.Invalidate()
	a.Hub.Publish(context.Background(), broadcast.CatalogChanged, string(doc))
}

// Start initializes the App and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Logger.Info("listening", zap.String("addr", a.Config.Addr), zap.String("data_dir", a.Config.DataDir))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Event
// streams are ended first so they do not hold the server open.
func (a *App) Shutdown(ctx context.Context) error {
	a.Hub.Close()
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets are served under /public/ and fall through to the
	// site's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/live.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.Static("/assets", a.Config.AssetsDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Raw documents.
	e.GET("/data/:doc", a.handleDocument)

	// Public API.
	api := e.Group("/api")
	api.GET("/jerseys", a.handleAPIJerseys)
	api.GET("/categories", a.handleAPICategories)
	api.GET("/tags", a.handleAPITags)
	api.GET("/config-public", a.handlePublicConfig)
	api.GET("/events", a.handleEvents)
	api.POST("/auth/login", a.handleAPILogin)
	api.POST("/auth/logout", a.handleAPILogout)
	api.GET("/auth/status", a.handleAPIStatus)

	// Admin API.
	auth := a.requireAdminAPI
	api.POST("/jerseys", a.handleSaveJerseys, auth)
	api.PUT("/jerseys", a.handleLegacySaveJerseys, auth)
	api.POST("/jerseys/update-cover", a.handleUpdateCover, auth)
	api.POST("/categories/create", a.handleCreateCategory, auth)
	api.POST("/categories/update", a.handleUpdateCategory, auth)
	api.POST("/categories/delete", a.handleDeleteCategory, auth)
	api.POST("/tags/create", a.handleCreateTag, auth)
	api.POST("/tags/update", a.handleUpdateTag, auth)
	api.POST("/tags/delete", a.handleDeleteTag, auth)
	api.PUT("/config-public", a.handleUpdatePublicConfig, auth)
	api.GET("/admin/stats", a.handleAdminStats, auth)
	api.GET("/admin/revisions", a.handleListRevisions, auth)
	api.POST("/admin/revisions/:id/restore", a.handleRestoreRevision, auth)
	api.POST("/admin/clean", a.handleClean, auth)
	api.POST("/admin/images", a.handleImageUpload, auth)
	api.GET("/admin/images/check", a.handleImageCheck, auth)
	api.POST("/admin/images/clean", a.handleImageClean, auth)

	// Public pages.
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleGallery)
	e.GET("/jersey/:id/", a.handleDetail)

	// HTML admin.
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/jersey/:id/", a.handleAdminSaveJersey)
	e.POST("/admin/categories/", a.handleAdminCreateDefinition)
	e.POST("/admin/tags/", a.handleAdminCreateDefinition)
	e.POST("/admin/categories/:id/delete/", a.handleAdminDeleteDefinition)
	e.POST("/admin/tags/:id/delete/", a.handleAdminDeleteDefinition)
	e.POST("/admin/clean/", a.handleAdminClean)
	e.POST("/admin/images/", a.handleAdminUpload)
	e.POST("/admin/revisions/:id/restore/", a.handleAdminRestore)
}

// Settings returns the current display settings.
func (a *App) Settings() catalog.Settings {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.settings
}

// SetPublicConfig merges a runtime override into the display settings.
func (a *App) SetPublicConfig(pc catalog.PublicConfig) catalog.Settings {
	a.settingsMu.Lock()
	a.settings = a.settings.Merge(pc)
	s := a.settings
	a.settingsMu.Unlock()
	return s
}

// Close stops the background workers and closes the databases.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.stopStats != nil {
		a.stopStats()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	a.Hub.Close()
	var errs []error
	if a.ownRelay != nil {
		errs = append(errs, a.ownRelay.Close())
	}
	if a.Stats != nil {
		errs = append(errs, a.Stats.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	return errors.Join(errs...)
}

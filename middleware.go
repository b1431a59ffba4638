package jerseyfolio

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const sessionName = "admin_session"

// Session keys.
const (
	sessAuthenticated = "authenticated"
	sessUsername      = "username"
	sessLoginTime     = "login_time"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	reqLog := a.Logger.Named("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/events"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			reqLog.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") ||
				strings.HasPrefix(path, "/assets/") ||
				path == "/api/events"
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/data/")
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/" ||
				strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/assets") ||
				strings.HasPrefix(path, "/data") ||
				strings.HasPrefix(path, "/api") ||
				path == "/sitemap.xml" || path == "/feed.xml" ||
				path == "/robots.txt" || path == "/favicon.svg"
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case strings.HasPrefix(path, "/public/"), strings.HasPrefix(path, "/assets/"):
			h.Set("Cache-Control", "public, max-age=86400")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			h.Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/data/"), strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/admin"):
			h.Set("Cache-Control", "no-store")
		default:
			// Pages are revalidated so a reload after a live update shows
			// the new catalog.
			h.Set("Cache-Control", "no-cache")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(a.Config.SessionTimeout / time.Second),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// adminLogin is the authenticated part of a session.
type adminLogin struct {
	Username  string
	LoginTime time.Time
}

func (s adminLogin) expiresAt(timeout time.Duration) time.Time {
	return s.LoginTime.Add(timeout)
}

// currentAdmin returns the login of the session. A login older than
// SessionTimeout is treated as logged out.
func (a *App) currentAdmin(c echo.Context) (adminLogin, bool) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return adminLogin{}, false
	}
	auth, ok := sess.Values[sessAuthenticated].(bool)
	if !ok || !auth {
		return adminLogin{}, false
	}
	unix, ok := sess.Values[sessLoginTime].(int64)
	if !ok {
		return adminLogin{}, false
	}
	s := adminLogin{LoginTime: time.Unix(unix, 0)}
	s.Username, _ = sess.Values[sessUsername].(string)
	if !a.now().Before(s.expiresAt(a.Config.SessionTimeout)) {
		return adminLogin{}, false
	}
	return s, true
}

// IsAdmin checks if the current session is authenticated and not expired.
func (a *App) IsAdmin(c echo.Context) bool {
	_, ok := a.currentAdmin(c)
	return ok
}

func (a *App) setAdminSession(c echo.Context, username string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessAuthenticated] = true
	sess.Values[sessUsername] = username
	sess.Values[sessLoginTime] = a.now().Unix()
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// requireAdminAPI rejects API calls without a live admin session.
func (a *App) requireAdminAPI(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.IsAdmin(c) {
			return apiError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

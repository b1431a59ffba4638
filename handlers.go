package jerseyfolio

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/gallery"
	"github.com/eringen/jerseyfolio/markdown"
	"github.com/eringen/jerseyfolio/resolve"
	"github.com/eringen/jerseyfolio/viewer"
	"github.com/eringen/jerseyfolio/views"
)

func (a *App) site() views.Site {
	return views.Site{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		LiveReload:  true,
	}
}

// viewStateFromQuery reads the gallery state from the query string. The
// page is applied last because the other setters reset it.
func (a *App) viewStateFromQuery(c echo.Context) catalog.ViewState {
	st := catalog.NewViewState(a.Settings().ItemsPerPage)
	st.SetCategory(c.QueryParam("category"))
	st.SetSearch(c.QueryParam("q"))
	st.SetSort(catalog.ParseSortKey(c.QueryParam("sort")), catalog.ParseOrder(c.QueryParam("order")))
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		st.GoToPage(p)
	}
	return st
}

func (a *App) handleGallery(c echo.Context) error {
	if c.QueryParam("admin") == "true" {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	st := a.viewStateFromQuery(c)
	settings := a.Settings()

	snap, err := a.Cache.Snapshot()
	if err != nil {
		a.Logger.Error("load catalog", zap.Error(err))
		vm := gallery.Build(catalog.Page{}, st, nil, nil, settings, err, false, 0)
		return RenderStatus(c, http.StatusServiceUnavailable, a.Views.Gallery(views.GalleryPage{
			Site: a.site(),
			Meta: views.PageMeta{URL: BuildURL(a.Config.URL)},
			VM:   vm,
		}))
	}
	page := catalog.Apply(catalog.Active(snap.Jerseys), st)
	vm := gallery.Build(page, st, snap.Categories, snap.Tags, settings, nil, true, 0)
	return Render(c, a.Views.Gallery(views.GalleryPage{
		Site: a.site(),
		Meta: views.PageMeta{URL: BuildURL(a.Config.URL)},
		VM:   vm,
	}))
}

func (a *App) handleDetail(c echo.Context) error {
	id := c.Param("id")
	j, err := a.Cache.Jersey(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		}
		return err
	}
	if !j.IsActive() {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}

	var m viewer.Modal
	m.Open(j)
	if n, err := strconv.Atoi(c.QueryParam("img")); err == nil {
		m.Select(n)
	}

	viewCount := 0
	if a.Stats != nil {
		ctx := c.Request().Context()
		if _, err := a.Stats.RecordView(ctx, j.ID, c.RealIP(), c.Request().UserAgent()); err != nil {
			a.Logger.Warn("record view", zap.String("jersey", j.ID), zap.Error(err))
		}
		if viewCount, err = a.Stats.Views(ctx, j.ID); err != nil {
			a.Logger.Warn("count views", zap.String("jersey", j.ID), zap.Error(err))
		}
	}

	return Render(c, a.Views.Detail(a.detailPage(j, &m, snap, viewCount)))
}

func (a *App) detailPage(j catalog.Jersey, m *viewer.Modal, snap Snapshot, viewCount int) views.DetailPage {
	settings := a.Settings()
	catRes := resolve.NewCategories(snap.Categories)
	tagRes := resolve.NewTags(snap.Tags)
	current, total := m.Counter()
	title := j.DisplayTitle()

	dp := views.DetailPage{
		Site: a.site(),
		Meta: views.PageMeta{
			Title:       title,
			Description: truncate(markdown.PlainText(j.Description), 160),
			URL:         BuildURL(a.Config.URL, "jersey", j.ID),
			OGType:      "article",
		},
		Jersey:   j,
		Title:    title,
		Category: catRes.Resolve(j.Category),
		Tags:     tagRes.ResolveAll(j.Tags),
		ImageURL: settings.ImageURL(m.Image()),
		Current:  current,
		Total:    total,
		Views:    viewCount,
		BackHref: "/",
	}
	if dp.ImageURL != "" {
		dp.Meta.Image = absoluteURL(a.Config.URL, dp.ImageURL)
	}
	if m.CanPrev() {
		dp.PrevHref = views.JerseyHref(j.ID, m.Index()-1)
	}
	if m.CanNext() {
		dp.NextHref = views.JerseyHref(j.ID, m.Index()+1)
	}
	for i, img := range j.Images {
		dp.Thumbs = append(dp.Thumbs, views.Thumb{
			Index:  i,
			URL:    settings.ThumbnailURL(img),
			Href:   views.JerseyHref(j.ID, i),
			Active: i == m.Index(),
		})
	}
	return dp
}

// handleDocument serves a data document exactly as stored.
func (a *App) handleDocument(c echo.Context) error {
	doc, ok := ParseDocument(c.Param("doc"))
	if !ok {
		return apiError(http.StatusNotFound, "unknown document")
	}
	data, err := a.Store.Raw(doc)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, data)
}

func (a *App) handleAPIJerseys(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, catalog.Active(snap.Jerseys))
}

func (a *App) handleAPICategories(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap.Categories)
}

func (a *App) handleAPITags(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap.Tags)
}

func (a *App) handlePublicConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Settings().Public())
}

func (a *App) handleUpdatePublicConfig(c echo.Context) error {
	var pc catalog.PublicConfig
	if err := c.Bind(&pc); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	s := a.SetPublicConfig(pc)
	a.Logger.Info("display settings changed",
		zap.String("images_base_url", s.ImagesBaseURL),
		zap.String("thumbnails_base_url", s.ThumbnailsBaseURL),
		zap.Int("items_per_page", s.ItemsPerPage),
	)
	a.Hub.Publish(c.Request().Context(), broadcast.ConfigChanged, "")
	return c.JSON(http.StatusOK, s.Public())
}

func (a *App) handleSitemap(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, catalog.Active(snap.Jerseys))
}

func (a *App) handleFeed(c echo.Context) error {
	snap, err := a.Cache.Snapshot()
	if err != nil {
		return err
	}
	return a.renderRSS(c, catalog.Active(snap.Jerseys))
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "robots.txt"))
}

// apiError builds the error returned by JSON handlers.
func apiError(code int, msg string) *echo.HTTPError {
	return echo.NewHTTPError(code, msg)
}

// isAPIPath reports whether errors on path are answered with JSON.
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/data/")
}

// errorStatus maps err to a status code and a client-facing message.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	var ve *adminpanel.ValidationError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, sentinelMessage(err, catalog.ErrNotFound)
	case errors.Is(err, catalog.ErrInvalid):
		return http.StatusBadRequest, sentinelMessage(err, catalog.ErrInvalid)
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// sentinelMessage drops the wrapping context from err. Text following the
// sentinel is the detail ("name is required"); a sentinel ending the chain
// names its subject instead: jersey "7" not found.
func sentinelMessage(err, sentinel error) string {
	s := err.Error()
	tag := sentinel.Error()
	i := strings.Index(s, tag)
	if i < 0 {
		return s
	}
	if rest := strings.TrimPrefix(s[i+len(tag):], ": "); rest != "" {
		return rest
	}
	head := strings.TrimSuffix(s[:i], ": ")
	if j := strings.LastIndex(head, ": "); j >= 0 {
		head = head[j+2:]
	}
	if head == "" {
		return "not found"
	}
	return head + " not found"
}

// errorCode is the snake_case status text used in the JSON envelope.
func errorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "error"
	}
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(text, "-", " "), " ", "_"))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := errorStatus(err)
	if code >= 500 {
		a.Logger.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
	}
	if isAPIPath(c.Request().URL.Path) {
		if err := c.JSON(code, map[string]string{"error": errorCode(code), "message": msg}); err != nil {
			a.Logger.Warn("write error response", zap.Error(err))
		}
		return
	}
	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound(a.site()))
	case code >= 500:
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}

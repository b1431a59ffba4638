package jerseyfolio

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/views"
)

// checkCredentials compares against the configured admin. A bcrypt hash
// takes precedence over the plain password.
func (a *App) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Config.AdminUsername)) == 1
	var passOK bool
	if a.Config.AdminPasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(a.Config.AdminPasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.Config.AdminPassword)) == 1
	}
	return userOK && passOK
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *App) handleAPILogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return apiError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return apiError(http.StatusBadRequest, "username and password are required")
	}
	if !a.checkCredentials(username, req.Password) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", zap.String("username", username), zap.String("remote_ip", ip))
		return apiError(http.StatusUnauthorized, "invalid credentials")
	}
	if err := a.setAdminSession(c, username); err != nil {
		return err
	}
	a.Logger.Info("admin logged in", zap.String("username", username), zap.String("remote_ip", ip))
	return c.JSON(http.StatusOK, map[string]any{"success": true, "user": username})
}

func (a *App) handleAPILogout(c echo.Context) error {
	if login, ok := a.currentAdmin(c); ok {
		a.Logger.Info("admin logged out", zap.String("username", login.Username))
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

type authStatus struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (a *App) handleAPIStatus(c echo.Context) error {
	login, ok := a.currentAdmin(c)
	if !ok {
		return c.JSON(http.StatusOK, authStatus{})
	}
	exp := login.expiresAt(a.Config.SessionTimeout).UTC()
	return c.JSON(http.StatusOK, authStatus{Authenticated: true, Username: login.Username, ExpiresAt: &exp})
}

func (a *App) handleSaveJerseys(c echo.Context) error {
	var body struct {
		Jerseys []catalog.Jersey `json:"jerseys"`
	}
	if err := c.Bind(&body); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := a.SaveJerseys(c.Request().Context(), body.Jerseys); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "count": len(body.Jerseys)})
}

// handleLegacySaveJerseys accepts the old bare-array save so existing
// admin pages keep working while they migrate to POST {jerseys}.
func (a *App) handleLegacySaveJerseys(c echo.Context) error {
	var items []catalog.Jersey
	if err := json.NewDecoder(c.Request().Body).Decode(&items); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	a.Logger.Warn("deprecated bare-array jersey save, use POST {\"jerseys\": [...]}",
		zap.String("remote_ip", c.RealIP()),
		zap.Int("jerseys", len(items)),
	)
	c.Response().Header().Set("Deprecation", "true")
	if err := a.SaveJerseys(c.Request().Context(), items); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "count": len(items)})
}

type coverRequest struct {
	ID         string `json:"id"`
	Thumbnail  string `json:"thumbnail"`
	JerseyID   string `json:"jersey_id"`
	CoverImage string `json:"cover_image"`
}

func (a *App) handleUpdateCover(c echo.Context) error {
	var req coverRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	id, thumb := firstNonEmpty(req.ID, req.JerseyID), firstNonEmpty(req.Thumbnail, req.CoverImage)
	if id == "" || thumb == "" {
		return apiError(http.StatusBadRequest, "id and thumbnail are required")
	}
	if err := a.UpdateCover(c.Request().Context(), id, thumb); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

type definitionRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func bindDefinition(c echo.Context) (definitionRequest, error) {
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return req, apiError(http.StatusBadRequest, "invalid JSON body")
	}
	return req, nil
}

func (a *App) handleCreateCategory(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	cat, err := a.CreateCategory(c.Request().Context(), req.Name, req.Color)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "category": cat})
}

func (a *App) handleUpdateCategory(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	if err := a.UpdateCategory(c.Request().Context(), req.ID, req.Name, req.Color); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (a *App) handleDeleteCategory(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	if err := a.DeleteCategory(c.Request().Context(), req.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (a *App) handleCreateTag(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	tag, err := a.CreateTag(c.Request().Context(), req.Name, req.Color)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "tag": tag})
}

func (a *App) handleUpdateTag(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	if err := a.UpdateTag(c.Request().Context(), req.ID, req.Name, req.Color); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (a *App) handleDeleteTag(c echo.Context) error {
	req, err := bindDefinition(c)
	if err != nil {
		return err
	}
	if err := a.DeleteTag(c.Request().Context(), req.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// TopViewed is one entry of the most viewed list.
type TopViewed struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Views int    `json:"views"`
}

// AdminStats summarizes the catalog for the admin.
type AdminStats struct {
	TotalJerseys       int            `json:"total_jerseys"`
	ActiveJerseys      int            `json:"active_jerseys"`
	InactiveJerseys    int            `json:"inactive_jerseys"`
	Categories         int            `json:"categories"`
	Tags               int            `json:"tags"`
	DanglingCategories int            `json:"dangling_categories"`
	DanglingTags       int            `json:"dangling_tags"`
	TopViewed          []TopViewed    `json:"top_viewed"`
	ByCategory         map[string]int `json:"by_category"`
	LastUpdated        string         `json:"last_updated,omitempty"`
}

const topViewedCount = 5

// Summary computes the admin statistics from the stored documents.
func (a *App) Summary(ctx context.Context) (AdminStats, error) {
	items, err := a.Store.Jerseys()
	if err != nil {
		return AdminStats{}, err
	}
	cats, err := a.Store.Categories()
	if err != nil {
		return AdminStats{}, err
	}
	tags, err := a.Store.Tags()
	if err != nil {
		return AdminStats{}, err
	}

	st := AdminStats{
		TotalJerseys: len(items),
		Categories:   len(cats),
		Tags:         len(tags),
		TopViewed:    []TopViewed{},
		ByCategory:   make(map[string]int),
	}
	for _, j := range items {
		if j.IsActive() {
			st.ActiveJerseys++
		} else {
			st.InactiveJerseys++
		}
		for _, c := range j.AllCategories() {
			st.ByCategory[c]++
		}
	}
	st.DanglingCategories, st.DanglingTags = catalog.Dangling(items, cats, tags)

	if fi, err := os.Stat(a.Store.Path(DocJerseys)); err == nil {
		st.LastUpdated = fi.ModTime().UTC().Format(time.RFC3339)
	}

	if a.Stats != nil {
		popular, err := a.Stats.Popular(ctx, topViewedCount)
		if err != nil {
			return AdminStats{}, fmt.Errorf("jerseyfolio: popular jerseys: %w", err)
		}
		for _, p := range popular {
			title := p.JerseyID
			if i := catalog.Find(items, p.JerseyID); i >= 0 {
				title = items[i].DisplayTitle()
			}
			st.TopViewed = append(st.TopViewed, TopViewed{ID: p.JerseyID, Title: title, Views: p.Views})
		}
	}
	return st, nil
}

func (a *App) handleAdminStats(c echo.Context) error {
	st, err := a.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (a *App) handleListRevisions(c echo.Context) error {
	var doc Document
	if q := c.QueryParam("document"); q != "" {
		d, ok := ParseDocument(q)
		if !ok {
			return apiError(http.StatusBadRequest, "unknown document "+strconv.Quote(q))
		}
		doc = d
	}
	revs, err := a.History.List(c.Request().Context(), doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"revisions": revs})
}

func (a *App) handleRestoreRevision(c echo.Context) error {
	rev, err := a.RestoreRevision(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "revision": rev})
}

type cleanRequest struct {
	Mode   catalog.CleanMode `json:"mode"`
	Number int               `json:"number"`
}

func (a *App) handleClean(c echo.Context) error {
	var req cleanRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid JSON body")
	}
	res, err := a.Clean(c.Request().Context(), req.Mode, req.Number)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HTML admin.

const adminRevisionsShown = 20

func adminRedirect(c echo.Context, page int, msg string) error {
	target := views.AdminHref(page)
	if msg != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + url.Values{"msg": {msg}}.Encode()
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// adminResult redirects back to the list, reporting ok on success and the
// error text for client errors.
func adminResult(c echo.Context, page int, err error, ok string) error {
	if err == nil {
		return adminRedirect(c, page, ok)
	}
	code, msg := errorStatus(err)
	if code >= 500 {
		return err
	}
	return adminRedirect(c, page, msg)
}

func formPage(c echo.Context) int {
	n, err := strconv.Atoi(c.FormValue("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (a *App) handleAdmin(c echo.Context) error {
	if !a.IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(views.LoginPage{Site: a.site(), CSRF: CsrfToken(c)}))
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	return a.renderAdminDashboard(c, c.QueryParam("msg"), page)
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	username := strings.TrimSpace(c.FormValue("username"))
	if !a.checkCredentials(username, c.FormValue("password")) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", zap.String("username", username), zap.String("remote_ip", ip))
		return Render(c, a.Views.AdminLogin(views.LoginPage{Site: a.site(), ShowError: true, CSRF: CsrfToken(c)}))
	}
	if err := a.setAdminSession(c, username); err != nil {
		return err
	}
	a.Logger.Info("admin logged in", zap.String("username", username), zap.String("remote_ip", ip))
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string, page int) error {
	ctx := c.Request().Context()
	items, err := a.Store.Jerseys()
	if err != nil {
		return err
	}
	cats, err := a.Store.Categories()
	if err != nil {
		return err
	}
	tags, err := a.Store.Tags()
	if err != nil {
		return err
	}
	st, err := a.Summary(ctx)
	if err != nil {
		return err
	}
	revs, err := a.History.List(ctx, "")
	if err != nil {
		return err
	}
	if len(revs) > adminRevisionsShown {
		revs = revs[:adminRevisionsShown]
	}

	login, _ := a.currentAdmin(c)
	ap := views.AdminPage{
		Site:     a.site(),
		CSRF:     CsrfToken(c),
		Message:  msg,
		Username: login.Username,
		Page:     adminpanel.BuildPage(items, cats, tags, page, nil),
		Summary: views.Summary{
			Total:              st.TotalJerseys,
			Active:             st.ActiveJerseys,
			Inactive:           st.InactiveJerseys,
			DanglingCategories: st.DanglingCategories,
			DanglingTags:       st.DanglingTags,
		},
		Settings: a.Settings(),
	}
	for _, t := range st.TopViewed {
		ap.Summary.TopViewed = append(ap.Summary.TopViewed, views.TopItem{ID: t.ID, Title: t.Title, Views: t.Views})
	}
	for _, r := range revs {
		ap.Revisions = append(ap.Revisions, views.RevisionItem{
			ID:        r.ID,
			Document:  r.Document,
			Reason:    r.Reason,
			Items:     r.Items,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return Render(c, a.Views.AdminDashboard(ap))
}

// requireAdminPage sends visitors without a session to the login form.
func (a *App) requireAdminPage(c echo.Context) bool {
	if a.IsAdmin(c) {
		return true
	}
	_ = c.Redirect(http.StatusSeeOther, "/admin/")
	return false
}

// splitIDs parses a comma separated id list. An empty field is an empty,
// non-nil list so the edit clears it.
func splitIDs(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *App) handleAdminSaveJersey(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	page := formPage(c)

	panel, err := a.newPanel(ctx)
	if err != nil {
		return err
	}
	title := c.FormValue("title")
	description := c.FormValue("description")
	year := c.FormValue("year")
	category := c.FormValue("category")
	active := c.FormValue("active") != ""
	changes := adminpanel.Changes{
		Title:       &title,
		Description: &description,
		Year:        &year,
		Category:    &category,
		Categories:  splitIDs(c.FormValue("categories")),
		Tags:        splitIDs(c.FormValue("tags")),
		Active:      &active,
	}
	if err := panel.Edit(id, changes); err != nil {
		return adminResult(c, page, err, "")
	}
	if cover := c.FormValue("cover"); cover != "" {
		if j, ok := panel.Jersey(id); ok && cover != j.Cover() {
			if err := panel.SetCover(id, cover); err != nil {
				return adminResult(c, page, err, "")
			}
		}
	}
	return adminResult(c, page, panel.Save(ctx), "Saved jersey "+id+".")
}

// definitionKind tells category routes from tag routes.
func definitionKind(c echo.Context) string {
	if strings.HasPrefix(c.Path(), "/admin/tags/") {
		return "tag"
	}
	return "category"
}

func (a *App) handleAdminCreateDefinition(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	ctx := c.Request().Context()
	panel, err := a.newPanel(ctx)
	if err != nil {
		return err
	}
	name, color := c.FormValue("name"), c.FormValue("color")
	var id string
	if definitionKind(c) == "tag" {
		var t catalog.Tag
		t, err = panel.CreateTag(ctx, name, color)
		id = t.ID
	} else {
		var cat catalog.Category
		cat, err = panel.CreateCategory(ctx, name, color)
		id = cat.ID
	}
	return adminResult(c, 1, err, fmt.Sprintf("Created %s %s.", definitionKind(c), id))
}

func (a *App) handleAdminDeleteDefinition(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	ctx := c.Request().Context()
	panel, err := a.newPanel(ctx)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if definitionKind(c) == "tag" {
		err = panel.DeleteTag(ctx, id)
	} else {
		err = panel.DeleteCategory(ctx, id)
	}
	return adminResult(c, 1, err, fmt.Sprintf("Deleted %s %s.", definitionKind(c), id))
}

func (a *App) handleAdminClean(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	ctx := c.Request().Context()
	n, _ := strconv.Atoi(c.FormValue("number"))
	res, err := a.Clean(ctx, catalog.CleanMode(c.FormValue("mode")), n)
	msg := fmt.Sprintf("Removed %d of %d jerseys.", res.Removed, res.Before)
	if err == nil && c.FormValue("images") != "" {
		var rep catalog.ImageReport
		rep, err = a.CleanImages(ctx, false)
		msg += fmt.Sprintf(" Deleted %d unreferenced images; %d jerseys have image problems.", rep.Removed, rep.Checked-rep.Valid)
	}
	return adminResult(c, 1, err, msg)
}

func (a *App) handleAdminUpload(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	file, err := c.FormFile("image")
	if err != nil {
		return adminRedirect(c, 1, "No image file provided.")
	}
	if file.Size > maxUploadSize {
		return adminRedirect(c, 1, "File too large (max 10MB).")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	img, err := a.SaveImage(src, file.Filename)
	if err != nil {
		a.Logger.Warn("image upload rejected", zap.String("filename", file.Filename), zap.Error(err))
		return adminRedirect(c, 1, "Invalid image.")
	}
	a.Logger.Info("image uploaded", zap.String("filename", img.Filename), zap.Int("size", img.Size))
	a.mirrorImage(c.Request().Context(), img.Filename)
	return adminRedirect(c, 1, "Uploaded "+img.Filename+".")
}

func (a *App) handleAdminRestore(c echo.Context) error {
	if !a.requireAdminPage(c) {
		return nil
	}
	rev, err := a.RestoreRevision(c.Request().Context(), c.Param("id"))
	return adminResult(c, 1, err, "Restored "+rev.Document+".")
}

package jerseyfolio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
)

// newTestApp creates an initialized App over temporary directories. Stats
// are disabled so tests do not depend on the view counter.
func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	dir := t.TempDir()
	a := New(SiteConfig{
		Name:          "Test Jerseys",
		URL:           "http://example.test",
		DataDir:       filepath.Join(dir, "data"),
		AssetsDir:     filepath.Join(dir, "assets"),
		DatabasePath:  filepath.Join(dir, "revisions.db"),
		AdminPassword: "secret",
		SessionSecret: "test-session-secret",
	}, append([]Option{WithStaticDir(filepath.Join(dir, "public"))}, opts...)...)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("failed to init app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func seedJerseys(t *testing.T, a *App, items ...catalog.Jersey) {
	t.Helper()
	if err := a.Store.SaveJerseys(items, "fixture"); err != nil {
		t.Fatalf("seed jerseys: %v", err)
	}
	a.Cache.Invalidate()
}

func doRequest(a *App, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

// login signs in as the configured admin and returns the session cookies.
func login(t *testing.T, a *App) []*http.Cookie {
	t.Helper()
	rec := doRequest(a, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no session cookie")
	}
	return cookies
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, code int, envelope string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != envelope {
		t.Errorf("expected error %q, got %+v", envelope, body)
	}
	if body["message"] == "" {
		t.Errorf("expected a message in %+v", body)
	}
}

func TestAPILoginFlow(t *testing.T) {
	a := newTestApp(t)

	rec := doRequest(a, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assertAPIError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = doRequest(a, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"})
	assertAPIError(t, rec, http.StatusBadRequest, "bad_request")

	cookies := login(t, a)

	var status authStatus
	decodeBody(t, doRequest(a, http.MethodGet, "/api/auth/status", nil, cookies...), &status)
	if !status.Authenticated || status.Username != "admin" || status.ExpiresAt == nil {
		t.Errorf("expected an authenticated status, got %+v", status)
	}

	status = authStatus{}
	decodeBody(t, doRequest(a, http.MethodGet, "/api/auth/status", nil), &status)
	if status.Authenticated {
		t.Error("expected no session without a cookie")
	}

	rec = doRequest(a, http.MethodPost, "/api/auth/logout", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected logout to expire the session cookie")
	}
}

func TestAPILoginRateLimited(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 5; i++ {
		rec := doRequest(a, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := doRequest(a, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "secret"})
	assertAPIError(t, rec, http.StatusTooManyRequests, "too_many_requests")
}

func TestSessionExpires(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	a := newTestApp(t, WithClock(clock))
	cookies := login(t, a)

	rec := doRequest(a, http.MethodGet, "/api/admin/revisions", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a live session, got %d", rec.Code)
	}

	mu.Lock()
	now = now.Add(a.Config.SessionTimeout + time.Minute)
	mu.Unlock()

	rec = doRequest(a, http.MethodGet, "/api/admin/revisions", nil, cookies...)
	assertAPIError(t, rec, http.StatusUnauthorized, "unauthorized")
	var status authStatus
	decodeBody(t, doRequest(a, http.MethodGet, "/api/auth/status", nil, cookies...), &status)
	if status.Authenticated {
		t.Error("expected an expired session to report unauthenticated")
	}
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	a := newTestApp(t)
	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/jerseys"},
		{http.MethodPut, "/api/jerseys"},
		{http.MethodPost, "/api/jerseys/update-cover"},
		{http.MethodPost, "/api/categories/create"},
		{http.MethodPost, "/api/tags/delete"},
		{http.MethodPut, "/api/config-public"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodPost, "/api/admin/clean"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := doRequest(a, tt.method, tt.path, map[string]any{})
			assertAPIError(t, rec, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func TestSaveJerseysRejectsEmpty(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Keep", Images: []string{"a.jpg"}})
	cookies := login(t, a)

	rec := doRequest(a, http.MethodPost, "/api/jerseys", map[string]any{"jerseys": []any{}}, cookies...)
	assertAPIError(t, rec, http.StatusBadRequest, "bad_request")

	rec = doRequest(a, http.MethodPost, "/api/jerseys", "{not json", cookies...)
	assertAPIError(t, rec, http.StatusBadRequest, "bad_request")

	items, err := a.Store.Jerseys()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("rejected save changed the catalog: %d jerseys", len(items))
	}
}

func TestSaveJerseysPublishes(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Old", Images: []string{"a.jpg"}})
	// Warm the cache so the save must invalidate it.
	if rec := doRequest(a, http.MethodGet, "/api/jerseys", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /api/jerseys: %d", rec.Code)
	}
	sub := a.Hub.Subscribe(4)
	defer sub.Close()
	cookies := login(t, a)

	body := map[string]any{"jerseys": []map[string]any{
		{"id": "1", "title": "New", "images": []string{"a.jpg"}},
		{"id": "2", "title": "Second", "images": []string{"b.jpg"}},
	}}
	rec := doRequest(a, http.MethodPost, "/api/jerseys", body, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}

	select {
	case m := <-sub.C:
		if m.Type != broadcast.JerseysSaved || m.Origin != a.Hub.Origin() {
			t.Errorf("unexpected message %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published for the save")
	}

	var items []catalog.Jersey
	decodeBody(t, doRequest(a, http.MethodGet, "/api/jerseys", nil), &items)
	if len(items) != 2 || items[0].DisplayTitle() != "New" {
		t.Errorf("expected the saved catalog, got %+v", items)
	}
}

func TestLegacySaveJerseys(t *testing.T) {
	a := newTestApp(t)
	cookies := login(t, a)

	rec := doRequest(a, http.MethodPut, "/api/jerseys", `[{"id":"1","title":"Legacy","images":["a.jpg"]}]`, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy save: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Deprecation") != "true" {
		t.Error("expected a Deprecation header")
	}
	items, _ := a.Store.Jerseys()
	if len(items) != 1 || items[0].DisplayTitle() != "Legacy" {
		t.Errorf("unexpected jerseys %+v", items)
	}
}

func TestUpdateCover(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Home", Images: []string{"a.jpg", "b.jpg"}})
	cookies := login(t, a)

	rec := doRequest(a, http.MethodPost, "/api/jerseys/update-cover", map[string]string{"jersey_id": "1", "cover_image": "b.jpg"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("update cover: %d %s", rec.Code, rec.Body.String())
	}
	items, _ := a.Store.Jerseys()
	if items[0].Thumbnail != "b.jpg" || items[0].UpdatedAt == "" {
		t.Errorf("unexpected jersey after cover update: %+v", items[0])
	}

	rec = doRequest(a, http.MethodPost, "/api/jerseys/update-cover", map[string]string{"id": "99", "thumbnail": "x.jpg"}, cookies...)
	assertAPIError(t, rec, http.StatusNotFound, "not_found")
}

func TestCategoryLifecycle(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Home", Category: "domicile", Images: []string{"a.jpg"}})
	cookies := login(t, a)

	var created struct {
		Category catalog.Category `json:"category"`
	}
	rec := doRequest(a, http.MethodPost, "/api/categories/create", map[string]string{"name": "Édition Spéciale"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	if created.Category.ID != "edition_speciale" || created.Category.Color != catalog.DefaultCategoryColor {
		t.Errorf("unexpected category %+v", created.Category)
	}

	decodeBody(t, doRequest(a, http.MethodPost, "/api/categories/create", map[string]string{"name": "Edition speciale"}, cookies...), &created)
	if created.Category.ID != "edition_speciale_1" {
		t.Errorf("expected a suffixed id, got %q", created.Category.ID)
	}

	rec = doRequest(a, http.MethodPost, "/api/categories/create", map[string]string{"name": "  "}, cookies...)
	assertAPIError(t, rec, http.StatusBadRequest, "bad_request")

	rec = doRequest(a, http.MethodPost, "/api/categories/update", map[string]string{"id": "missing", "name": "X"}, cookies...)
	assertAPIError(t, rec, http.StatusNotFound, "not_found")
	rec = doRequest(a, http.MethodPost, "/api/categories/delete", map[string]string{"id": "missing"}, cookies...)
	assertAPIError(t, rec, http.StatusNotFound, "not_found")

	rec = doRequest(a, http.MethodPost, "/api/categories/delete", map[string]string{"id": "domicile"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	items, _ := a.Store.Jerseys()
	if items[0].Category != "domicile" {
		t.Errorf("deleting a category must keep jersey references, got %q", items[0].Category)
	}
	page := doRequest(a, http.MethodGet, "/", nil)
	if !strings.Contains(page.Body.String(), "deleted category (domicile)") {
		t.Error("expected the gallery to label the dangling category")
	}
}

func TestDeleteTagStripsJerseys(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "One", Tags: []string{"vintage", "signed"}, Images: []string{"a.jpg"}},
		catalog.Jersey{ID: "2", Title: "Two", Tags: []string{"signed"}, Images: []string{"b.jpg"}},
	)
	cookies := login(t, a)
	var created struct {
		Tag catalog.Tag `json:"tag"`
	}
	decodeBody(t, doRequest(a, http.MethodPost, "/api/tags/create", map[string]string{"name": "Signed", "color": "#123456"}, cookies...), &created)
	if created.Tag.ID != "signed" || created.Tag.Color != "#123456" {
		t.Fatalf("unexpected tag %+v", created.Tag)
	}

	sub := a.Hub.Subscribe(8)
	defer sub.Close()
	rec := doRequest(a, http.MethodPost, "/api/tags/delete", map[string]string{"id": "signed"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete tag: %d %s", rec.Code, rec.Body.String())
	}
	items, _ := a.Store.Jerseys()
	for _, j := range items {
		if j.HasTag("signed") {
			t.Errorf("jersey %s still carries the deleted tag", j.ID)
		}
	}
	if !items[0].HasTag("vintage") {
		t.Error("other tags must be kept")
	}
	m := <-sub.C
	if m.Type != broadcast.TagDeleted || m.Subject != "signed" {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestDataDocuments(t *testing.T) {
	a := newTestApp(t)

	rec := doRequest(a, http.MethodGet, "/data/categories.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET categories.json: %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON, got %q", ct)
	}
	raw, _ := a.Store.Raw(DocCategories)
	if rec.Body.String() != string(raw) {
		t.Error("expected the document exactly as stored")
	}

	rec = doRequest(a, http.MethodGet, "/data/users.json", nil)
	assertAPIError(t, rec, http.StatusNotFound, "not_found")
}

func TestAPIJerseysActiveOnly(t *testing.T) {
	a := newTestApp(t)
	inactive := false
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "Shown", Images: []string{"a.jpg"}},
		catalog.Jersey{ID: "2", Title: "Hidden", Images: []string{"b.jpg"}, Active: &inactive},
	)

	var items []catalog.Jersey
	decodeBody(t, doRequest(a, http.MethodGet, "/api/jerseys", nil), &items)
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("expected only active jerseys, got %+v", items)
	}
}

func TestPublicConfig(t *testing.T) {
	a := newTestApp(t)
	cookies := login(t, a)

	var pc catalog.PublicConfig
	decodeBody(t, doRequest(a, http.MethodGet, "/api/config-public", nil), &pc)
	if pc.ImagesBaseURL != catalog.DefaultImagesBaseURL {
		t.Errorf("unexpected default config %+v", pc)
	}

	rec := doRequest(a, http.MethodPut, "/api/config-public", map[string]any{"items_per_page": 6}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("update config: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, doRequest(a, http.MethodGet, "/api/config-public", nil), &pc)
	if pc.ItemsPerPage != 6 || pc.ImagesBaseURL != catalog.DefaultImagesBaseURL {
		t.Errorf("expected a merged override, got %+v", pc)
	}
}

func TestCleanEndpoint(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "Home", Images: []string{"a.jpg"}},
		catalog.Jersey{ID: "2", Title: "home", Images: []string{"b.jpg"}},
		catalog.Jersey{ID: "3", Title: "Away", Images: []string{"c.jpg"}},
	)
	cookies := login(t, a)

	var res catalog.CleanResult
	rec := doRequest(a, http.MethodPost, "/api/admin/clean", map[string]any{"mode": "duplicates"}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("clean: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &res)
	if res.Before != 3 || res.Removed != 1 {
		t.Errorf("unexpected clean result %+v", res)
	}

	rec = doRequest(a, http.MethodPost, "/api/admin/clean", map[string]any{"mode": "everything"}, cookies...)
	assertAPIError(t, rec, http.StatusBadRequest, "bad_request")
}

func TestRestoreRevisionEndpoint(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a, catalog.Jersey{ID: "1", Title: "Original", Images: []string{"a.jpg"}})
	cookies := login(t, a)
	rec := doRequest(a, http.MethodPost, "/api/jerseys", map[string]any{"jerseys": []map[string]any{
		{"id": "1", "title": "Mistake", "images": []string{"a.jpg"}},
	}}, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d", rec.Code)
	}

	var list struct {
		Revisions []Revision `json:"revisions"`
	}
	decodeBody(t, doRequest(a, http.MethodGet, "/api/admin/revisions?document=jerseys", nil, cookies...), &list)
	if len(list.Revisions) == 0 {
		t.Fatal("expected recorded revisions")
	}
	rec = doRequest(a, http.MethodPost, "/api/admin/revisions/"+list.Revisions[0].ID+"/restore", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", rec.Code, rec.Body.String())
	}

	var items []catalog.Jersey
	decodeBody(t, doRequest(a, http.MethodGet, "/api/jerseys", nil), &items)
	if len(items) != 1 || items[0].DisplayTitle() != "Original" {
		t.Errorf("expected the restored catalog, got %+v", items)
	}

	rec = doRequest(a, http.MethodPost, "/api/admin/revisions/01ARZ3NDEKTSV4RRFFQ69G5FAV/restore", nil, cookies...)
	assertAPIError(t, rec, http.StatusNotFound, "not_found")
}

func TestGalleryPage(t *testing.T) {
	a := newTestApp(t)
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "Domicile 2024", Category: "domicile", Images: []string{"a.jpg"}},
		catalog.Jersey{ID: "2", Title: "Extérieur 2023", Category: "exterieur", Images: []string{"b.jpg"}},
	)

	rec := doRequest(a, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Domicile 2024", "Extérieur 2023", "Test Jerseys"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in the gallery", want)
		}
	}

	rec = doRequest(a, http.MethodGet, "/?category=exterieur", nil)
	if strings.Contains(rec.Body.String(), "Domicile 2024") {
		t.Error("expected the category filter to hide other jerseys")
	}

	rec = doRequest(a, http.MethodGet, "/?admin=true", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/" {
		t.Errorf("expected a redirect to the admin, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestDetailPage(t *testing.T) {
	a := newTestApp(t)
	inactive := false
	seedJerseys(t, a,
		catalog.Jersey{ID: "1", Title: "Domicile 2024", Images: []string{"a.jpg", "b.jpg"}},
		catalog.Jersey{ID: "2", Title: "Retired", Images: []string{"c.jpg"}, Active: &inactive},
	)

	rec := doRequest(a, http.MethodGet, "/jersey/1/?img=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET detail: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Domicile 2024") || !strings.Contains(body, "b.jpg") {
		t.Error("expected the selected image of the jersey")
	}

	for _, path := range []string{"/jersey/2/", "/jersey/404/"} {
		if rec := doRequest(a, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestEventStream(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Echo)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected an event stream, got %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != "retry: 3000" {
		t.Fatalf("expected the retry hint first, got %q", lines.Text())
	}

	// The handler subscribes before writing the retry hint.
	a.Hub.Publish(context.Background(), broadcast.CategoryCreated, "maillot")

	var event, data string
	for lines.Scan() {
		line := lines.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	if event != string(broadcast.CategoryCreated) {
		t.Fatalf("expected category.created, got %q", event)
	}
	var m broadcast.Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if m.Subject != "maillot" || m.ID == "" {
		t.Errorf("unexpected message %+v", m)
	}
}

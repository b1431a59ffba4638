// Package adminpanel is the editing side of the catalog. A Panel keeps its
// own copy of the documents, applies edits locally and persists them with a
// single save-all call, announcing every change on a broadcast hub.
package adminpanel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/resolve"
)

// Backend is the subset of the data access layer the panel needs.
type Backend interface {
	Jerseys(ctx context.Context) ([]catalog.Jersey, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	Tags(ctx context.Context) ([]catalog.Tag, error)
	SaveJerseys(ctx context.Context, items []catalog.Jersey) error
	CreateCategory(ctx context.Context, name, color string) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CreateTag(ctx context.Context, name, color string) (catalog.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// PerPage is the admin list page size. It does not follow the gallery's.
const PerPage = 12

// ValidationError rejects an edit before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("adminpanel: %s: %s", e.Field, e.Message)
}

// Changes names the fields an edit touches. Nil fields are left alone.
type Changes struct {
	Title       *string
	Description *string
	Year        *string
	Category    *string
	Categories  []string
	Tags        []string
	Active      *bool
}

// Panel is one admin session's working copy of the catalog.
type Panel struct {
	backend Backend
	hub     *broadcast.Hub
	log     *zap.Logger

	mu         sync.Mutex
	items      []catalog.Jersey
	categories []catalog.Category
	tags       []catalog.Tag
	page       int
	dirty      map[string]struct{}
	edits      uint64            // bumped by every edit
	editedAt   map[string]uint64 // edits value at each jersey's last edit
}

// Option configures a Panel.
type Option func(*Panel)

// WithLogger sets the panel logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Panel) { p.log = log }
}

// New returns a panel over backend. Changes are announced on hub, which may
// be nil.
func New(backend Backend, hub *broadcast.Hub, opts ...Option) *Panel {
	p := &Panel{
		backend: backend,
		hub:     hub,
		log:     zap.NewNop(),
		page:     1,
		dirty:    make(map[string]struct{}),
		editedAt: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load replaces the working copy with fresh documents, discarding unsaved
// edits.
func (p *Panel) Load(ctx context.Context) error {
	items, err := p.backend.Jerseys(ctx)
	if err != nil {
		return fmt.Errorf("adminpanel: load jerseys: %w", err)
	}
	cats, tags, err := p.fetchDefinitions(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	p.categories = cats
	p.tags = tags
	p.dirty = make(map[string]struct{})
	p.editedAt = make(map[string]uint64)
	if p.page > p.totalPages() {
		p.page = 1
	}
	return nil
}

func (p *Panel) fetchDefinitions(ctx context.Context) ([]catalog.Category, []catalog.Tag, error) {
	cats, err := p.backend.Categories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("adminpanel: load categories: %w", err)
	}
	tags, err := p.backend.Tags(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("adminpanel: load tags: %w", err)
	}
	return cats, tags, nil
}

func (p *Panel) reloadDefinitions(ctx context.Context) error {
	cats, tags, err := p.fetchDefinitions(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.categories, p.tags = cats, tags
	p.mu.Unlock()
	return nil
}

func (p *Panel) totalPages() int {
	n := (len(p.items) + PerPage - 1) / PerPage
	if n < 1 {
		n = 1
	}
	return n
}

// GoToPage moves the admin list to page n. Out-of-range pages are ignored.
func (p *Panel) GoToPage(n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 1 || n > p.totalPages() {
		return false
	}
	p.page = n
	return true
}

// Row is one jersey in the admin list.
type Row struct {
	Jersey     catalog.Jersey
	Title      string
	Categories []resolve.Label
	Tags       []resolve.Label
	Dirty      bool
}

// PageView is the admin list as a renderer sees it.
type PageView struct {
	Rows       []Row
	Pagination catalog.Pagination
	Categories []catalog.Category
	Tags       []catalog.Tag
	Dirty      int
}

// Page returns the current admin page in document order.
func (p *Panel) Page() PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return BuildPage(p.items, p.categories, p.tags, p.page, p.dirty)
}

// BuildPage renders page n of items in document order. dirty marks rows
// with unsaved edits and may be nil.
func BuildPage(items []catalog.Jersey, cats []catalog.Category, tags []catalog.Tag, n int, dirty map[string]struct{}) PageView {
	visible, pg := catalog.Paginate(items, n, PerPage)
	catRes := resolve.NewCategories(cats)
	tagRes := resolve.NewTags(tags)
	pv := PageView{
		Pagination: pg,
		Categories: append([]catalog.Category(nil), cats...),
		Tags:       append([]catalog.Tag(nil), tags...),
		Dirty:      len(dirty),
	}
	for _, j := range visible {
		_, d := dirty[j.ID]
		pv.Rows = append(pv.Rows, Row{
			Jersey:     j.Clone(),
			Title:      j.DisplayTitle(),
			Categories: catRes.ResolveAll(j.AllCategories()),
			Tags:       tagRes.ResolveAll(j.Tags),
			Dirty:      d,
		})
	}
	return pv
}

// Jersey returns the working copy of one jersey.
func (p *Panel) Jersey(id string) (catalog.Jersey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := catalog.Find(p.items, id); i >= 0 {
		return p.items[i].Clone(), true
	}
	return catalog.Jersey{}, false
}

// Dirty reports whether there are unsaved edits.
func (p *Panel) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirty) > 0
}

// Edit applies c to jersey id. The edit is validated as a whole and either
// applied completely or not at all.
func (p *Panel) Edit(id string, c Changes) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := catalog.Find(p.items, id)
	if i < 0 {
		return fmt.Errorf("adminpanel: jersey %q: %w", id, catalog.ErrNotFound)
	}
	j := p.items[i].Clone()

	if c.Title != nil {
		t := strings.TrimSpace(*c.Title)
		if t == "" {
			return &ValidationError{Field: "title", Message: "title is required"}
		}
		j.SetTitle(t)
	}
	if c.Description != nil {
		j.Description = *c.Description
	}
	if c.Year != nil {
		j.Year = editYear(j.Year, strings.TrimSpace(*c.Year))
	}
	if c.Tags != nil {
		j.Tags = dedupe(c.Tags)
	}
	if c.Active != nil {
		v := *c.Active
		j.Active = &v
	}
	if c.Category != nil || c.Categories != nil {
		primary := j.Category
		if c.Category != nil {
			primary = strings.TrimSpace(*c.Category)
		}
		others := j.Categories
		if c.Categories != nil {
			others = dedupe(c.Categories)
		}
		if err := setCategories(&j, primary, others, c.Categories != nil); err != nil {
			return err
		}
	}

	p.items[i] = j
	p.markDirty(id)
	return nil
}

// setCategories installs primary and others on j. The primary category is
// always a member of the list when the document carries one.
func setCategories(j *catalog.Jersey, primary string, others []string, explicit bool) error {
	if primary == "" && len(others) > 0 {
		primary = others[0]
	}
	if primary == "" {
		return &ValidationError{Field: "category", Message: "at least one category is required"}
	}
	j.Category = primary
	if explicit || j.Categories != nil {
		if !containsString(others, primary) {
			others = append([]string{primary}, others...)
		}
		j.Categories = others
	}
	return nil
}

// editYear keeps a numeric year numeric as long as the new text is a number.
func editYear(cur catalog.Year, text string) catalog.Year {
	if text == "" {
		return catalog.Year{}
	}
	numeric := cur.Numeric || cur.IsZero()
	for _, r := range text {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	return catalog.Year{Text: text, Numeric: numeric}
}

// SetCover makes image the jersey's thumbnail. It must be one of its images.
func (p *Panel) SetCover(id, image string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := catalog.Find(p.items, id)
	if i < 0 {
		return fmt.Errorf("adminpanel: jersey %q: %w", id, catalog.ErrNotFound)
	}
	if !containsString(p.items[i].Images, image) {
		return &ValidationError{Field: "thumbnail", Message: fmt.Sprintf("%q is not one of the jersey's images", image)}
	}
	p.items[i].Thumbnail = image
	p.markDirty(id)
	return nil
}

// AddCategory adds category cat to jersey id.
func (p *Panel) AddCategory(id, cat string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := catalog.Find(p.items, id)
	if i < 0 {
		return fmt.Errorf("adminpanel: jersey %q: %w", id, catalog.ErrNotFound)
	}
	cat = strings.TrimSpace(cat)
	if cat == "" {
		return &ValidationError{Field: "category", Message: "category is required"}
	}
	j := p.items[i].Clone()
	if j.InCategory(cat) {
		return nil
	}
	if j.Category == "" {
		j.Category = cat
	}
	j.Categories = append(j.AllCategories(), cat)
	j.Categories = dedupe(j.Categories)
	p.items[i] = j
	p.markDirty(id)
	return nil
}

// RemoveCategory removes category cat from jersey id. Removing the primary
// category promotes the next one; the last category cannot be removed.
func (p *Panel) RemoveCategory(id, cat string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := catalog.Find(p.items, id)
	if i < 0 {
		return fmt.Errorf("adminpanel: jersey %q: %w", id, catalog.ErrNotFound)
	}
	j := p.items[i].Clone()
	if !j.InCategory(cat) {
		return nil
	}
	var rest []string
	for _, c := range j.AllCategories() {
		if c != cat {
			rest = append(rest, c)
		}
	}
	if len(rest) == 0 {
		return &ValidationError{Field: "category", Message: "at least one category is required"}
	}
	j.Category = rest[0]
	if j.Categories != nil {
		j.Categories = rest
	}
	p.items[i] = j
	p.markDirty(id)
	return nil
}

// markDirty records an edit of jersey id. Callers hold p.mu.
func (p *Panel) markDirty(id string) {
	p.edits++
	p.dirty[id] = struct{}{}
	p.editedAt[id] = p.edits
}

// Save sends the whole working copy in one call. A failure leaves the
// working copy and its dirty marks untouched. Edits made while the call is
// in flight stay dirty.
func (p *Panel) Save(ctx context.Context) error {
	p.mu.Lock()
	items := make([]catalog.Jersey, len(p.items))
	for i := range p.items {
		items[i] = p.items[i].Clone()
	}
	sent := p.edits
	p.mu.Unlock()

	if err := p.backend.SaveJerseys(ctx, items); err != nil {
		p.log.Warn("save failed", zap.Int("jerseys", len(items)), zap.Error(err))
		return fmt.Errorf("adminpanel: save: %w", err)
	}
	p.mu.Lock()
	for id := range p.dirty {
		if p.editedAt[id] <= sent {
			delete(p.dirty, id)
			delete(p.editedAt, id)
		}
	}
	p.mu.Unlock()
	p.log.Info("jerseys saved", zap.Int("jerseys", len(items)))
	p.publish(ctx, broadcast.JerseysSaved, "")
	return nil
}

// CreateCategory creates a category on the backend.
func (p *Panel) CreateCategory(ctx context.Context, name, color string) (catalog.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Category{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	c, err := p.backend.CreateCategory(ctx, name, color)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("adminpanel: create category: %w", err)
	}
	p.publish(ctx, broadcast.CategoryCreated, c.ID)
	return c, p.reloadDefinitions(ctx)
}

// DeleteCategory deletes a category definition. Jerseys keep the reference
// and render it as a deleted category.
func (p *Panel) DeleteCategory(ctx context.Context, id string) error {
	if err := p.backend.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("adminpanel: delete category: %w", err)
	}
	p.publish(ctx, broadcast.CategoryDeleted, id)
	return p.reloadDefinitions(ctx)
}

// CreateTag creates a tag on the backend.
func (p *Panel) CreateTag(ctx context.Context, name, color string) (catalog.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Tag{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	t, err := p.backend.CreateTag(ctx, name, color)
	if err != nil {
		return catalog.Tag{}, fmt.Errorf("adminpanel: create tag: %w", err)
	}
	p.publish(ctx, broadcast.TagCreated, t.ID)
	return t, p.reloadDefinitions(ctx)
}

// DeleteTag deletes a tag. The backend strips it from every jersey, and the
// working copy follows without becoming dirty.
func (p *Panel) DeleteTag(ctx context.Context, id string) error {
	if err := p.backend.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("adminpanel: delete tag: %w", err)
	}
	p.mu.Lock()
	for i := range p.items {
		p.items[i].RemoveTag(id)
	}
	p.mu.Unlock()
	p.publish(ctx, broadcast.TagDeleted, id)
	return p.reloadDefinitions(ctx)
}

func (p *Panel) publish(ctx context.Context, t broadcast.Type, subject string) {
	if p.hub == nil {
		return
	}
	p.hub.Publish(ctx, t, subject)
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s != "" && !containsString(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

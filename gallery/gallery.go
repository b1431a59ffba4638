// Package gallery is the catalog controller: it owns the view state, pulls
// fresh documents from a Source and turns the pipeline result into a view
// model that any renderer can draw.
package gallery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/resolve"
)

// Source provides the three catalog documents.
type Source interface {
	Jerseys(ctx context.Context) ([]catalog.Jersey, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	Tags(ctx context.Context) ([]catalog.Tag, error)
}

// Card is one jersey as the gallery shows it.
type Card struct {
	ID       string
	Title    string
	Year     string
	CoverURL string
	Category resolve.Label
	Tags     []resolve.Label
	Images   int
	Jersey   catalog.Jersey
}

// FilterButton is one entry of the category filter bar.
type FilterButton struct {
	ID     string
	Name   string
	Color  string
	Active bool
}

// ViewModel is everything needed to draw the gallery.
type ViewModel struct {
	State      catalog.ViewState
	Cards      []Card
	Filters    []FilterButton
	Pagination catalog.Pagination
	// Err is the last load failure. The previous cards stay visible.
	Err     error
	Loaded  bool
	Version uint64
}

// Empty reports whether a successful load produced nothing to show.
func (vm ViewModel) Empty() bool {
	return vm.Loaded && len(vm.Cards) == 0
}

// Gallery holds the view state and the last computed page.
type Gallery struct {
	src      Source
	settings catalog.Settings
	log      *zap.Logger

	mu         sync.Mutex
	state      catalog.ViewState
	items      []catalog.Jersey
	categories []catalog.Category
	tags       []catalog.Tag
	page       catalog.Page
	err        error
	loaded     bool
	version    uint64
}

// Option configures a Gallery.
type Option func(*Gallery)

// WithLogger sets the gallery logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gallery) { g.log = log }
}

// New returns a gallery reading from src. Nothing is fetched until Load.
func New(src Source, settings catalog.Settings, opts ...Option) *Gallery {
	g := &Gallery{
		src:      src,
		settings: settings,
		log:      zap.NewNop(),
		state:    catalog.NewViewState(settings.ItemsPerPage),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load fetches fresh documents and recomputes the visible page. On failure
// the previous page is kept and the error is recorded for the view.
func (g *Gallery) Load(ctx context.Context) error {
	items, err := g.src.Jerseys(ctx)
	var cats []catalog.Category
	var tags []catalog.Tag
	if err == nil {
		cats, err = g.src.Categories(ctx)
	}
	if err == nil {
		tags, err = g.src.Tags(ctx)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.err = err
		g.log.Warn("catalog load failed", zap.Error(err))
		return err
	}
	g.items = catalog.Active(items)
	g.categories = cats
	g.tags = tags
	g.err = nil
	g.loaded = true
	g.recompute()
	return nil
}

// recompute runs the pipeline over the held documents. Callers hold g.mu.
func (g *Gallery) recompute() {
	g.page = catalog.Apply(g.items, g.state)
	g.version++
}

// mutate applies fn to the view state, recomputes from the held documents
// and then reloads them.
func (g *Gallery) mutate(ctx context.Context, fn func(*catalog.ViewState)) error {
	g.mu.Lock()
	fn(&g.state)
	g.recompute()
	g.mu.Unlock()
	return g.Load(ctx)
}

// SetCategory filters by category id and returns to page 1.
func (g *Gallery) SetCategory(ctx context.Context, id string) error {
	return g.mutate(ctx, func(v *catalog.ViewState) { v.SetCategory(id) })
}

// SetSearch changes the search term and returns to page 1.
func (g *Gallery) SetSearch(ctx context.Context, term string) error {
	return g.mutate(ctx, func(v *catalog.ViewState) { v.SetSearch(term) })
}

// SetSort changes the sort and returns to page 1.
func (g *Gallery) SetSort(ctx context.Context, key catalog.SortKey, order catalog.Order) error {
	return g.mutate(ctx, func(v *catalog.ViewState) { v.SetSort(key, order) })
}

// GoToPage moves to page p.
func (g *Gallery) GoToPage(ctx context.Context, p int) error {
	return g.mutate(ctx, func(v *catalog.ViewState) { v.GoToPage(p) })
}

// State returns a copy of the view state.
func (g *Gallery) State() catalog.ViewState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Settings returns the display settings the gallery renders with.
func (g *Gallery) Settings() catalog.Settings { return g.settings }

// Categories returns the category definitions from the last load.
func (g *Gallery) Categories() []catalog.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]catalog.Category(nil), g.categories...)
}

// Lookup returns a held jersey by id.
func (g *Gallery) Lookup(id string) (catalog.Jersey, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := catalog.Find(g.items, id); i >= 0 {
		return g.items[i].Clone(), true
	}
	return catalog.Jersey{}, false
}

// View builds the view model for the current page.
func (g *Gallery) View() ViewModel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Build(g.page, g.state, g.categories, g.tags, g.settings, g.err, g.loaded, g.version)
}

// Build turns a pipeline page into a view model. Jerseys without an image
// are not rendered.
func Build(page catalog.Page, state catalog.ViewState, cats []catalog.Category, tags []catalog.Tag,
	settings catalog.Settings, err error, loaded bool, version uint64) ViewModel {
	catRes := resolve.NewCategories(cats)
	tagRes := resolve.NewTags(tags)

	vm := ViewModel{
		State:      state,
		Pagination: page.Pagination,
		Err:        err,
		Loaded:     loaded,
		Version:    version,
		Filters:    Filters(cats, state.Category),
	}
	for _, j := range page.Items {
		if !j.Displayable() {
			continue
		}
		vm.Cards = append(vm.Cards, Card{
			ID:       j.ID,
			Title:    j.DisplayTitle(),
			Year:     j.Year.String(),
			CoverURL: settings.ThumbnailURL(j.Cover()),
			Category: catRes.Resolve(j.Category),
			Tags:     tagRes.ResolveAll(j.Tags),
			Images:   len(j.Images),
			Jersey:   j,
		})
	}
	return vm
}

// Filters returns the "all" button followed by one button per category,
// marking the selected one.
func Filters(cats []catalog.Category, selected string) []FilterButton {
	if selected == "" {
		selected = catalog.AllCategories
	}
	out := make([]FilterButton, 0, len(cats)+1)
	out = append(out, FilterButton{
		ID:     catalog.AllCategories,
		Name:   "All",
		Active: selected == catalog.AllCategories,
	})
	for _, c := range cats {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		color := c.Color
		if color == "" {
			color = catalog.DefaultCategoryColor
		}
		out = append(out, FilterButton{ID: c.ID, Name: name, Color: color, Active: c.ID == selected})
	}
	return out
}

// Listen reloads the gallery for every message on ch until ctx is done or
// ch is closed. Load failures are kept in the view model.
func (g *Gallery) Listen(ctx context.Context, ch <-chan broadcast.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			g.log.Debug("reloading on broadcast", zap.String("type", string(m.Type)), zap.String("origin", m.Origin))
			_ = g.Load(ctx)
		}
	}
}

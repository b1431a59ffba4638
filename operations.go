package jerseyfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/broadcast"
	"github.com/eringen/jerseyfolio/catalog"
)

// Every mutation below writes through the store, drops the cached snapshot
// and announces itself on the hub, in that order.

func (a *App) changed(ctx context.Context, t broadcast.Type, subject string) {
	a.Cache.Invalidate()
	a.Hub.Publish(ctx, t, subject)
}

func (a *App) timestamp() string {
	return a.now().UTC().Format(time.RFC3339)
}

// SaveJerseys replaces every jersey. An empty list is rejected so a broken
// client cannot wipe the catalog.
func (a *App) SaveJerseys(ctx context.Context, items []catalog.Jersey) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no jerseys provided", catalog.ErrInvalid)
	}
	if err := a.Store.SaveJerseys(items, "bulk save"); err != nil {
		return fmt.Errorf("jerseyfolio: save jerseys: %w", err)
	}
	a.Logger.Info("jerseys saved", zap.Int("jerseys", len(items)))
	a.changed(ctx, broadcast.JerseysSaved, "")
	return nil
}

// UpdateCover sets the thumbnail of jersey id.
func (a *App) UpdateCover(ctx context.Context, id, thumbnail string) error {
	if id == "" || thumbnail == "" {
		return fmt.Errorf("%w: id and thumbnail are required", catalog.ErrInvalid)
	}
	err := a.Store.UpdateJerseys("update cover "+id, func(items []catalog.Jersey) ([]catalog.Jersey, error) {
		i := catalog.Find(items, id)
		if i < 0 {
			return nil, fmt.Errorf("jersey %q: %w", id, catalog.ErrNotFound)
		}
		items[i].Thumbnail = thumbnail
		items[i].UpdatedAt = a.timestamp()
		return items, nil
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: update cover: %w", err)
	}
	a.changed(ctx, broadcast.JerseysSaved, id)
	return nil
}

func colorOr(c, fallback string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return fallback
}

// CreateCategory adds a category whose id is slugged from name.
func (a *App) CreateCategory(ctx context.Context, name, color string) (catalog.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Category{}, fmt.Errorf("%w: category name is required", catalog.ErrInvalid)
	}
	var created catalog.Category
	err := a.Store.UpdateCategories("create category", func(defs []catalog.Category) ([]catalog.Category, error) {
		ids := catalog.CategoryIDs(defs)
		created = catalog.Category{
			ID: catalog.SlugID(name, "category", func(id string) bool {
				_, ok := ids[id]
				return ok
			}),
			Name:  name,
			Color: colorOr(color, catalog.DefaultCategoryColor),
		}
		return append(defs, created), nil
	})
	if err != nil {
		return catalog.Category{}, fmt.Errorf("jerseyfolio: create category: %w", err)
	}
	a.changed(ctx, broadcast.CategoryCreated, created.ID)
	return created, nil
}

// UpdateCategory renames or recolors a category. Empty values are left
// unchanged.
func (a *App) UpdateCategory(ctx context.Context, id, name, color string) error {
	if id == "" {
		return fmt.Errorf("%w: category id is required", catalog.ErrInvalid)
	}
	err := a.Store.UpdateCategories("update category "+id, func(defs []catalog.Category) ([]catalog.Category, error) {
		for i := range defs {
			if defs[i].ID != id {
				continue
			}
			if n := strings.TrimSpace(name); n != "" {
				defs[i].Name = n
			}
			defs[i].Color = colorOr(color, defs[i].Color)
			return defs, nil
		}
		return nil, fmt.Errorf("category %q: %w", id, catalog.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: update category: %w", err)
	}
	a.changed(ctx, broadcast.CategoryUpdated, id)
	return nil
}

// DeleteCategory removes a category definition. Jerseys keep their
// reference to it.
func (a *App) DeleteCategory(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: category id is required", catalog.ErrInvalid)
	}
	err := a.Store.UpdateCategories("delete category "+id, func(defs []catalog.Category) ([]catalog.Category, error) {
		kept := defs[:0]
		for _, d := range defs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		if len(kept) == len(defs) {
			return nil, fmt.Errorf("category %q: %w", id, catalog.ErrNotFound)
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: delete category: %w", err)
	}
	a.changed(ctx, broadcast.CategoryDeleted, id)
	return nil
}

// CreateTag adds a tag whose id is slugged from name.
func (a *App) CreateTag(ctx context.Context, name, color string) (catalog.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Tag{}, fmt.Errorf("%w: tag name is required", catalog.ErrInvalid)
	}
	var created catalog.Tag
	err := a.Store.UpdateTags("create tag", func(defs []catalog.Tag) ([]catalog.Tag, error) {
		ids := catalog.TagIDs(defs)
		created = catalog.Tag{
			ID: catalog.SlugID(name, "tag", func(id string) bool {
				_, ok := ids[id]
				return ok
			}),
			Name:  name,
			Color: colorOr(color, catalog.DefaultTagColor),
		}
		return append(defs, created), nil
	})
	if err != nil {
		return catalog.Tag{}, fmt.Errorf("jerseyfolio: create tag: %w", err)
	}
	a.changed(ctx, broadcast.TagCreated, created.ID)
	return created, nil
}

// UpdateTag renames or recolors a tag.
func (a *App) UpdateTag(ctx context.Context, id, name, color string) error {
	if id == "" {
		return fmt.Errorf("%w: tag id is required", catalog.ErrInvalid)
	}
	err := a.Store.UpdateTags("update tag "+id, func(defs []catalog.Tag) ([]catalog.Tag, error) {
		for i := range defs {
			if defs[i].ID != id {
				continue
			}
			if n := strings.TrimSpace(name); n != "" {
				defs[i].Name = n
			}
			defs[i].Color = colorOr(color, defs[i].Color)
			return defs, nil
		}
		return nil, fmt.Errorf("tag %q: %w", id, catalog.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: update tag: %w", err)
	}
	a.changed(ctx, broadcast.TagUpdated, id)
	return nil
}

// DeleteTag removes a tag definition and strips the tag from every jersey.
func (a *App) DeleteTag(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: tag id is required", catalog.ErrInvalid)
	}
	err := a.Store.UpdateTags("delete tag "+id, func(defs []catalog.Tag) ([]catalog.Tag, error) {
		kept := defs[:0]
		for _, d := range defs {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		if len(kept) == len(defs) {
			return nil, fmt.Errorf("tag %q: %w", id, catalog.ErrNotFound)
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: delete tag: %w", err)
	}

	stripped := 0
	err = a.Store.UpdateJerseys("strip tag "+id, func(items []catalog.Jersey) ([]catalog.Jersey, error) {
		for i := range items {
			if items[i].RemoveTag(id) {
				stripped++
			}
		}
		return items, nil
	})
	if err != nil {
		return fmt.Errorf("jerseyfolio: strip tag %s: %w", id, err)
	}
	a.Logger.Info("tag deleted", zap.String("tag", id), zap.Int("stripped", stripped))
	a.changed(ctx, broadcast.TagDeleted, id)
	return nil
}

// Clean applies a catalog cleanup and saves the result. An empty mode
// removes duplicates. Local image references are checked against the
// assets directory.
func (a *App) Clean(ctx context.Context, mode catalog.CleanMode, n int) (catalog.CleanResult, error) {
	if mode == "" {
		mode = catalog.CleanDuplicates
	}
	var res catalog.CleanResult
	err := a.Store.UpdateJerseys("clean "+string(mode), func(items []catalog.Jersey) ([]catalog.Jersey, error) {
		kept, r, err := catalog.CleanWith(items, mode, n, a.Config.ImageExists)
		if err != nil {
			return nil, err
		}
		res = r
		return kept, nil
	})
	if err != nil {
		return catalog.CleanResult{}, fmt.Errorf("jerseyfolio: clean: %w", err)
	}
	a.Logger.Info("catalog cleaned",
		zap.String("mode", string(mode)),
		zap.Int("before", res.Before),
		zap.Int("removed", res.Removed),
	)
	a.changed(ctx, broadcast.CatalogCleaned, string(mode))
	return res, nil
}

// RestoreRevision puts a recorded document version back in place. The
// version being replaced is itself recorded, so a restore can be undone.
func (a *App) RestoreRevision(ctx context.Context, id string) (Revision, error) {
	rev, err := a.History.Restore(ctx, a.Store, id)
	if err != nil {
		return Revision{}, fmt.Errorf("jerseyfolio: restore %s: %w", id, err)
	}
	a.Logger.Info("revision restored", zap.String("revision", id), zap.String("document", rev.Document))
	a.changed(ctx, broadcast.RevisionRestored, rev.Document)
	return rev, nil
}

// localBackend serves an adminpanel.Panel straight from the App, for the
// server-rendered admin.
type localBackend struct {
	a *App
}

var _ adminpanel.Backend = localBackend{}

func (b localBackend) Jerseys(context.Context) ([]catalog.Jersey, error) {
	return b.a.Store.Jerseys()
}

func (b localBackend) Categories(context.Context) ([]catalog.Category, error) {
	return b.a.Store.Categories()
}

func (b localBackend) Tags(context.Context) ([]catalog.Tag, error) {
	return b.a.Store.Tags()
}

func (b localBackend) SaveJerseys(ctx context.Context, items []catalog.Jersey) error {
	return b.a.SaveJerseys(ctx, items)
}

func (b localBackend) CreateCategory(ctx context.Context, name, color string) (catalog.Category, error) {
	return b.a.CreateCategory(ctx, name, color)
}

func (b localBackend) DeleteCategory(ctx context.Context, id string) error {
	return b.a.DeleteCategory(ctx, id)
}

func (b localBackend) CreateTag(ctx context.Context, name, color string) (catalog.Tag, error) {
	return b.a.CreateTag(ctx, name, color)
}

func (b localBackend) DeleteTag(ctx context.Context, id string) error {
	return b.a.DeleteTag(ctx, id)
}

// newPanel returns a panel over the App. The App publishes its own
// changes, so the panel gets no hub.
func (a *App) newPanel(ctx context.Context) (*adminpanel.Panel, error) {
	p := adminpanel.New(localBackend{a: a}, nil, adminpanel.WithLogger(a.Logger.Named("admin")))
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

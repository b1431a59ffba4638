package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/gallery"
	"github.com/eringen/jerseyfolio/markdown"
)

// Gallery is the public gallery page.
func Gallery(gp GalleryPage) templ.Component {
	return Layout(gp.Site, gp.Meta, GallerySection(gp.VM))
}

// GallerySection renders the filter bar, the cards and the pagination.
func GallerySection(vm gallery.ViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		st := vm.State

		p.raw(`<section id="gallery" class="gallery">`)
		p.raw(`<nav class="filters">`)
		for _, f := range vm.Filters {
			next := st
			next.SetCategory(f.ID)
			class := "filter"
			if f.Active {
				class += " active"
			}
			p.raw(`<a class="`, class, `" style="--chip:`, SafeColor(f.Color, catalog.DefaultCategoryColor), `" href="`)
			p.text(GalleryHref(next))
			p.raw(`">`)
			p.text(f.Name)
			p.raw(`</a>`)
		}
		p.raw(`</nav>`)

		p.raw(`<form class="controls" method="get" action="/">`)
		if st.Category != catalog.AllCategories {
			p.raw(`<input type="hidden" name="category" value="`)
			p.text(st.Category)
			p.raw(`">`)
		}
		p.raw(`<input type="search" name="q" placeholder="Search jerseys" value="`)
		p.text(st.Search)
		p.raw(`"><select name="sort">`)
		for _, k := range []catalog.SortKey{catalog.SortDate, catalog.SortName, catalog.SortYear} {
			p.option(string(k), sortLabel(k), st.Sort == k)
		}
		p.raw(`</select><select name="order">`)
		p.option(string(catalog.Desc), "Descending", st.Order == catalog.Desc)
		p.option(string(catalog.Asc), "Ascending", st.Order == catalog.Asc)
		p.raw(`</select><button type="submit">Apply</button></form>`)

		switch {
		case vm.Err != nil:
			p.raw(`<p class="placeholder error">The collection could not be loaded. Please try again later.</p>`)
		case vm.Empty():
			p.raw(`<p class="placeholder">No jerseys match these filters.</p>`)
		default:
			p.raw(`<div class="grid">`)
			for _, card := range vm.Cards {
				p.card(card)
			}
			p.raw(`</div>`)
		}

		p.pagination(vm)
		p.raw(`</section>`)
		return p.err
	})
}

func sortLabel(k catalog.SortKey) string {
	switch k {
	case catalog.SortName:
		return "Name"
	case catalog.SortYear:
		return "Year"
	}
	return "Date added"
}

func (p *page) option(value, label string, selected bool) {
	p.raw(`<option value="`)
	p.text(value)
	p.raw(`"`)
	if selected {
		p.raw(` selected`)
	}
	p.raw(`>`)
	p.text(label)
	p.raw(`</option>`)
}

func (p *page) card(c gallery.Card) {
	p.raw(`<article class="card"><a href="`)
	p.text(JerseyHref(c.ID, 0))
	p.raw(`"><img loading="lazy" src="`)
	p.text(markdown.SafeURL(c.CoverURL))
	p.raw(`" alt="`)
	p.text(c.Title)
	p.raw(`"><h2>`)
	p.text(c.Title)
	p.raw(`</h2></a><p class="meta">`)
	p.chip("category", c.Category.Name, c.Category.Color, catalog.DefaultCategoryColor)
	if c.Year != "" {
		p.raw(` <span class="year">`)
		p.text(c.Year)
		p.raw(`</span>`)
	}
	p.raw(` <span class="count">`, itoa(c.Images), " ", pluralize(c.Images, "photo", "photos"), `</span></p>`)
	if len(c.Tags) > 0 {
		p.raw(`<p class="tags">`)
		for _, t := range c.Tags {
			p.chip("tag", t.Name, t.Color, catalog.DefaultTagColor)
		}
		p.raw(`</p>`)
	}
	p.raw(`</article>`)
}

func (p *page) pagination(vm gallery.ViewModel) {
	pg := vm.Pagination
	if pg.TotalPages <= 1 {
		return
	}
	p.raw(`<nav class="pagination">`)
	if pg.HasPrev {
		prev := vm.State
		prev.GoToPage(pg.CurrentPage - 1)
		p.raw(`<a rel="prev" href="`)
		p.text(GalleryHref(prev))
		p.raw(`">Previous</a>`)
	}
	p.raw(` <span>Page `, itoa(pg.CurrentPage), ` of `, itoa(pg.TotalPages), `</span> `)
	if pg.HasNext {
		next := vm.State
		next.GoToPage(pg.CurrentPage + 1)
		p.raw(`<a rel="next" href="`)
		p.text(GalleryHref(next))
		p.raw(`">Next</a>`)
	}
	p.raw(`</nav>`)
}

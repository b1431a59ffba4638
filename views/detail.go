package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/markdown"
)

// Detail is the jersey page with its image viewer.
func Detail(dp DetailPage) templ.Component {
	return Layout(dp.Site, dp.Meta, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<article class="detail"><p><a class="back" href="`)
		p.text(dp.BackHref)
		p.raw(`">&larr; Back to the gallery</a></p><h1>`)
		p.text(dp.Title)
		p.raw(`</h1><p class="meta">`)
		p.chip("category", dp.Category.Name, dp.Category.Color, catalog.DefaultCategoryColor)
		if !dp.Jersey.Year.IsZero() {
			p.raw(` <span class="year">`)
			p.text(dp.Jersey.Year.String())
			p.raw(`</span>`)
		}
		p.raw(` <span class="views">`, itoa(dp.Views), " ", pluralize(dp.Views, "view", "views"), `</span></p>`)

		if dp.Total > 0 {
			p.raw(`<figure class="viewer"><img src="`)
			p.text(markdown.SafeURL(dp.ImageURL))
			p.raw(`" alt="`)
			p.text(dp.Title)
			p.raw(`"><figcaption>`)
			if dp.PrevHref != "" {
				p.raw(`<a class="prev" rel="prev" href="`)
				p.text(dp.PrevHref)
				p.raw(`">&lsaquo;</a> `)
			}
			p.raw(`<span class="counter">`, itoa(dp.Current), ` / `, itoa(dp.Total), `</span>`)
			if dp.NextHref != "" {
				p.raw(` <a class="next" rel="next" href="`)
				p.text(dp.NextHref)
				p.raw(`">&rsaquo;</a>`)
			}
			p.raw(`</figcaption></figure>`)
		}
		if len(dp.Thumbs) > 1 {
			p.raw(`<ul class="thumbs">`)
			for _, t := range dp.Thumbs {
				class := "thumb"
				if t.Active {
					class += " active"
				}
				p.raw(`<li class="`, class, `"><a href="`)
				p.text(t.Href)
				p.raw(`"><img loading="lazy" src="`)
				p.text(markdown.SafeURL(t.URL))
				p.raw(`" alt="`, itoa(t.Index+1), `"></a></li>`)
			}
			p.raw(`</ul>`)
		}

		p.raw(`<div class="description">`)
		p.component(ctx, markdown.Markdown(dp.Jersey.Description))
		p.raw(`</div>`)
		if len(dp.Tags) > 0 {
			p.raw(`<p class="tags">`)
			for _, t := range dp.Tags {
				p.chip("tag", t.Name, t.Color, catalog.DefaultTagColor)
			}
			p.raw(`</p>`)
		}
		p.raw(`<script type="application/ld+json">`, JerseyJsonLD(dp.Site, dp), `</script>`)
		p.raw(`</article>`)
		return p.err
	}))
}

// Package views renders the server side HTML pages as templ components.
package views

import (
	"context"
	"html"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// page accumulates HTML and remembers the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(parts ...string) {
	for _, s := range parts {
		if p.err != nil {
			return
		}
		_, p.err = io.WriteString(p.w, s)
	}
}

// text writes s escaped for element content and attribute values.
func (p *page) text(s string) {
	p.raw(html.EscapeString(s))
}

func (p *page) component(ctx context.Context, c templ.Component) {
	if p.err != nil || c == nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

// csrfField writes the hidden form field the CSRF middleware reads.
func (p *page) csrfField(token string) {
	p.raw(`<input type="hidden" name="_csrf" value="`)
	p.text(token)
	p.raw(`">`)
}

// Layout wraps body in the document shell.
func Layout(site Site, meta PageMeta, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		title := site.Name
		if meta.Title != "" && meta.Title != site.Name {
			title = meta.Title + " | " + site.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = site.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(`</title><meta name="description" content="`)
		p.text(desc)
		p.raw(`"><meta property="og:title" content="`)
		p.text(title)
		p.raw(`"><meta property="og:type" content="`)
		p.text(ogType)
		p.raw(`">`)
		if meta.URL != "" {
			p.raw(`<link rel="canonical" href="`)
			p.text(meta.URL)
			p.raw(`"><meta property="og:url" content="`)
			p.text(meta.URL)
			p.raw(`">`)
		}
		if meta.Image != "" {
			p.raw(`<meta property="og:image" content="`)
			p.text(meta.Image)
			p.raw(`">`)
		}
		p.raw(`<link rel="alternate" type="application/rss+xml" title="`)
		p.text(site.Name)
		p.raw(`" href="/feed.xml">`,
			`<link rel="icon" href="/favicon.svg">`,
			`<link rel="stylesheet" href="/public/style.css">`)
		p.raw(`<script type="application/ld+json">`, WebsiteJsonLD(site), `</script>`)
		if site.LiveReload {
			p.raw(`<script src="/public/live.js" defer></script>`)
		}
		p.raw(`</head><body><header class="site-header"><a class="brand" href="/">`)
		p.text(site.Name)
		p.raw(`</a><nav><a href="/">Gallery</a> <a href="/feed.xml">Feed</a></nav></header><main>`)
		p.component(ctx, body)
		p.raw(`</main><footer class="site-footer">`)
		p.text(site.Name)
		p.raw(`</footer></body></html>`)
		return p.err
	})
}

// NotFound is the 404 page.
func NotFound(site Site) templ.Component {
	return Layout(site, PageMeta{Title: "Not found"}, message("Not found", "This jersey is not in the collection (anymore)."))
}

// ServerError is the 5xx page.
func ServerError(site Site) templ.Component {
	return Layout(site, PageMeta{Title: "Error"}, message("Something went wrong", "Please try again in a moment."))
}

func message(heading, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section class="message"><h1>`)
		p.text(heading)
		p.raw(`</h1><p>`)
		p.text(body)
		p.raw(`</p><p><a href="/">Back to the gallery</a></p></section>`)
		return p.err
	})
}

// chip renders a colored label.
func (p *page) chip(class, name, color, fallback string) {
	p.raw(`<span class="`, class, `" style="--chip:`, SafeColor(color, fallback), `">`)
	p.text(name)
	p.raw(`</span>`)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func itoa(n int) string { return strconv.Itoa(n) }

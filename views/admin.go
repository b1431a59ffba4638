package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/markdown"
)

// AdminLogin is the admin login form.
func AdminLogin(lp LoginPage) templ.Component {
	return Layout(lp.Site, PageMeta{Title: "Admin"}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section class="admin login"><h1>Admin</h1>`)
		if lp.ShowError {
			p.raw(`<p class="error">Invalid username or password.</p>`)
		}
		p.raw(`<form method="post" action="/admin/login/">`)
		p.csrfField(lp.CSRF)
		p.raw(`<label>Username <input name="username" autocomplete="username" required></label>`,
			`<label>Password <input type="password" name="password" autocomplete="current-password" required></label>`,
			`<button type="submit">Log in</button></form></section>`)
		return p.err
	}))
}

// AdminDashboard is the admin list with its definition, cleanup and
// revision forms.
func AdminDashboard(ap AdminPage) templ.Component {
	return Layout(ap.Site, PageMeta{Title: "Admin"}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section class="admin"><header><h1>Admin</h1><p>Signed in as `)
		p.text(ap.Username)
		p.raw(`</p><form method="post" action="/admin/logout/">`)
		p.csrfField(ap.CSRF)
		p.raw(`<button type="submit">Log out</button></form></header>`)
		if ap.Message != "" {
			p.raw(`<p class="flash">`)
			p.text(ap.Message)
			p.raw(`</p>`)
		}
		p.summary(ap.Summary)
		p.adminList(ap)
		p.definitions(ap)
		p.maintenance(ap)
		p.revisions(ap)
		p.raw(`</section>`)
		return p.err
	}))
}

func (p *page) summary(s Summary) {
	p.raw(`<section class="summary"><ul>`,
		`<li>`, itoa(s.Total), ` jerseys</li>`,
		`<li>`, itoa(s.Active), ` active</li>`,
		`<li>`, itoa(s.Inactive), ` inactive</li>`)
	if s.DanglingCategories > 0 || s.DanglingTags > 0 {
		p.raw(`<li class="warning">`, itoa(s.DanglingCategories), ` deleted category and `,
			itoa(s.DanglingTags), ` deleted tag references</li>`)
	}
	p.raw(`</ul>`)
	if len(s.TopViewed) > 0 {
		p.raw(`<h2>Most viewed</h2><ol>`)
		for _, t := range s.TopViewed {
			p.raw(`<li><a href="`)
			p.text(JerseyHref(t.ID, 0))
			p.raw(`">`)
			p.text(t.Title)
			p.raw(`</a> (`, itoa(t.Views), `)</li>`)
		}
		p.raw(`</ol>`)
	}
	p.raw(`</section>`)
}

func (p *page) adminList(ap AdminPage) {
	pv := ap.Page
	p.raw(`<section class="jerseys"><h2>Jerseys</h2>`)
	if len(pv.Rows) == 0 {
		p.raw(`<p class="placeholder">No jerseys yet.</p>`)
	}
	for _, row := range pv.Rows {
		p.adminRow(ap, row)
	}
	if pv.Pagination.TotalPages > 1 {
		p.raw(`<nav class="pagination">`)
		if pv.Pagination.HasPrev {
			p.raw(`<a rel="prev" href="`, AdminHref(pv.Pagination.CurrentPage-1), `">Previous</a>`)
		}
		p.raw(` <span>Page `, itoa(pv.Pagination.CurrentPage), ` of `, itoa(pv.Pagination.TotalPages), `</span> `)
		if pv.Pagination.HasNext {
			p.raw(`<a rel="next" href="`, AdminHref(pv.Pagination.CurrentPage+1), `">Next</a>`)
		}
		p.raw(`</nav>`)
	}
	p.raw(`</section>`)
}

func (p *page) adminRow(ap AdminPage, row adminpanel.Row) {
	j := row.Jersey
	p.raw(`<form class="row" method="post" action="/admin/jersey/`, PathEscape(j.ID), `/">`)
	p.csrfField(ap.CSRF)
	p.raw(`<input type="hidden" name="page" value="`, itoa(ap.Page.Pagination.CurrentPage), `">`)
	if cover := j.Cover(); cover != "" {
		p.raw(`<img class="cover" loading="lazy" src="`)
		p.text(markdown.SafeURL(ap.Settings.ThumbnailURL(cover)))
		p.raw(`" alt="">`)
	}
	p.raw(`<span class="id">#`)
	p.text(j.ID)
	p.raw(`</span><label>Title <input name="title" required value="`)
	p.text(row.Title)
	p.raw(`"></label><label>Year <input name="year" value="`)
	p.text(j.Year.String())
	p.raw(`"></label><label>Category <select name="category">`)
	known := false
	for _, c := range ap.Page.Categories {
		known = known || c.ID == j.Category
		p.option(c.ID, c.Name, c.ID == j.Category)
	}
	if !known && j.Category != "" {
		p.option(j.Category, row.Categories[0].Name, true)
	}
	p.raw(`</select></label><label>Categories <input name="categories" value="`)
	p.text(JoinIDs(j.Categories))
	p.raw(`"></label><label>Tags <input name="tags" value="`)
	p.text(JoinIDs(j.Tags))
	p.raw(`"></label>`)
	if len(j.Images) > 1 {
		p.raw(`<label>Cover <select name="cover">`)
		for _, img := range j.Images {
			p.option(img, img, img == j.Cover())
		}
		p.raw(`</select></label>`)
	}
	p.raw(`<label><input type="checkbox" name="active" value="1"`)
	if j.IsActive() {
		p.raw(` checked`)
	}
	p.raw(`> Active</label><label class="wide">Description <textarea name="description">`)
	p.text(j.Description)
	p.raw(`</textarea></label><p class="labels">`)
	for _, l := range row.Categories {
		p.chip("category", l.Name, l.Color, catalog.DefaultCategoryColor)
	}
	for _, l := range row.Tags {
		p.chip("tag", l.Name, l.Color, catalog.DefaultTagColor)
	}
	p.raw(`</p><button type="submit">Save</button></form>`)
}

func (p *page) definitions(ap AdminPage) {
	p.raw(`<section class="definitions"><h2>Categories</h2><ul>`)
	for _, c := range ap.Page.Categories {
		p.definition(ap.CSRF, "categories", "category", c.ID, c.Name, c.Color, catalog.DefaultCategoryColor)
	}
	p.raw(`</ul>`)
	p.createForm(ap.CSRF, "categories", "New category", catalog.DefaultCategoryColor)
	p.raw(`<h2>Tags</h2><ul>`)
	for _, t := range ap.Page.Tags {
		p.definition(ap.CSRF, "tags", "tag", t.ID, t.Name, t.Color, catalog.DefaultTagColor)
	}
	p.raw(`</ul>`)
	p.createForm(ap.CSRF, "tags", "New tag", catalog.DefaultTagColor)
	p.raw(`</section>`)
}

func (p *page) definition(csrf, kind, class, id, name, color, fallback string) {
	p.raw(`<li>`)
	p.chip(class, name, color, fallback)
	p.raw(` <code>`)
	p.text(id)
	p.raw(`</code><form class="inline" method="post" action="/admin/`, kind, `/`, PathEscape(id), `/delete/">`)
	p.csrfField(csrf)
	p.raw(`<button type="submit">Delete</button></form></li>`)
}

func (p *page) createForm(csrf, kind, label, color string) {
	p.raw(`<form class="create" method="post" action="/admin/`, kind, `/">`)
	p.csrfField(csrf)
	p.raw(`<input name="name" placeholder="`)
	p.text(label)
	p.raw(`" required><input type="color" name="color" value="`, color, `"><button type="submit">Create</button></form>`)
}

func (p *page) maintenance(ap AdminPage) {
	p.raw(`<section class="maintenance"><h2>Maintenance</h2>`)
	p.raw(`<form method="post" action="/admin/clean/">`)
	p.csrfField(ap.CSRF)
	p.raw(`<select name="mode">`)
	p.option(string(catalog.CleanDuplicates), "Remove duplicate titles", true)
	p.option(string(catalog.CleanNoImages), "Remove jerseys without images", false)
	p.option(string(catalog.CleanLast), "Remove the last N", false)
	p.option(string(catalog.CleanAll), "Duplicates, then jerseys without images", false)
	p.raw(`</select><input type="number" name="number" min="1" placeholder="N">`)
	p.raw(`<label><input type="checkbox" name="images" value="1"> Delete unreferenced image files</label><button type="submit">Clean</button></form>`)
	p.raw(`<form method="post" action="/admin/images/" enctype="multipart/form-data">`)
	p.csrfField(ap.CSRF)
	p.raw(`<input type="file" name="image" accept="image/*" required><button type="submit">Upload image</button></form></section>`)
}

func (p *page) revisions(ap AdminPage) {
	if len(ap.Revisions) == 0 {
		return
	}
	p.raw(`<section class="revisions"><h2>Revisions</h2><table><thead><tr><th>When</th><th>Document</th><th>Reason</th><th>Items</th><th></th></tr></thead><tbody>`)
	for _, r := range ap.Revisions {
		p.raw(`<tr><td>`)
		p.text(r.CreatedAt)
		p.raw(`</td><td>`)
		p.text(r.Document)
		p.raw(`</td><td>`)
		p.text(r.Reason)
		p.raw(`</td><td>`, itoa(r.Items), `</td><td><form method="post" action="/admin/revisions/`, PathEscape(r.ID), `/restore/">`)
		p.csrfField(ap.CSRF)
		p.raw(`<button type="submit">Restore</button></form></td></tr>`)
	}
	p.raw(`</tbody></table></section>`)
}

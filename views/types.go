package views

import (
	"github.com/eringen/jerseyfolio/adminpanel"
	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/gallery"
	"github.com/eringen/jerseyfolio/resolve"
)

// Site holds site-wide settings. Every handler passes this to templates so
// nothing is hardcoded.
type Site struct {
	Name        string // SITE_NAME
	URL         string // SITE_URL
	Description string // SITE_DESCRIPTION
	LiveReload  bool   // subscribe to /api/events and reload on changes
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image
}

// GalleryPage is the public gallery.
type GalleryPage struct {
	Site Site
	Meta PageMeta
	VM   gallery.ViewModel
}

// Thumb is one entry in the detail thumbnail strip.
type Thumb struct {
	Index  int
	URL    string
	Href   string
	Active bool
}

// DetailPage is one jersey with its selected image.
type DetailPage struct {
	Site     Site
	Meta     PageMeta
	Jersey   catalog.Jersey
	Title    string
	Category resolve.Label
	Tags     []resolve.Label
	ImageURL string
	Current  int
	Total    int
	PrevHref string // empty at the first image
	NextHref string // empty at the last image
	Thumbs   []Thumb
	Views    int
	BackHref string
}

// LoginPage is the admin login form.
type LoginPage struct {
	Site      Site
	ShowError bool
	CSRF      string
}

// RevisionItem is a stored document revision as listed in the dashboard.
type RevisionItem struct {
	ID        string
	Document  string
	Reason    string
	Items     int
	CreatedAt string
}

// TopItem is a jersey and its view count.
type TopItem struct {
	ID    string
	Title string
	Views int
}

// Summary is the dashboard's statistics block.
type Summary struct {
	Total              int
	Active             int
	Inactive           int
	DanglingCategories int
	DanglingTags       int
	TopViewed          []TopItem
}

// AdminPage is the admin dashboard.
type AdminPage struct {
	Site      Site
	CSRF      string
	Message   string
	Username  string
	Page      adminpanel.PageView
	Summary   Summary
	Revisions []RevisionItem
	Settings  catalog.Settings
}

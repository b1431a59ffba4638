package views

import (
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/eringen/jerseyfolio/catalog"
)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PathEscape wraps url.PathEscape for use in templates.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// SafeColor returns c when it is a hex color and fallback otherwise, so
// definition colors can be placed in style attributes.
func SafeColor(c, fallback string) string {
	if hexColor.MatchString(c) {
		return c
	}
	return fallback
}

// GalleryHref returns the gallery URL for state. Default values are left
// out of the query.
func GalleryHref(state catalog.ViewState) string {
	q := url.Values{}
	if state.Category != "" && state.Category != catalog.AllCategories {
		q.Set("category", state.Category)
	}
	if state.Search != "" {
		q.Set("q", state.Search)
	}
	if state.Sort != "" && state.Sort != catalog.SortDate {
		q.Set("sort", string(state.Sort))
	}
	if state.Order != "" && state.Order != catalog.Desc {
		q.Set("order", string(state.Order))
	}
	if state.Page > 1 {
		q.Set("page", strconv.Itoa(state.Page))
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

// JerseyHref returns the detail URL of jersey id showing image img.
func JerseyHref(id string, img int) string {
	href := "/jersey/" + url.PathEscape(id) + "/"
	if img > 0 {
		href += "?img=" + strconv.Itoa(img)
	}
	return href
}

// AdminHref returns the admin list URL for page n.
func AdminHref(n int) string {
	if n <= 1 {
		return "/admin/"
	}
	return "/admin/?page=" + strconv.Itoa(n)
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block.
func WebsiteJsonLD(site Site) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      buildURL(site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	return marshalJsonLD(data)
}

// JerseyJsonLD produces a Schema.org CreativeWork JSON-LD block for a jersey.
func JerseyJsonLD(site Site, p DetailPage) string {
	pageURL := buildURL(site.URL, "jersey", p.Jersey.ID)
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "CreativeWork",
		"name":     p.Title,
		"url":      pageURL,
		"genre":    p.Category.Name,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   pageURL,
		},
	}
	if !p.Jersey.Year.IsZero() {
		data["dateCreated"] = p.Jersey.Year.String()
	}
	if p.ImageURL != "" {
		data["image"] = p.ImageURL
	}
	if len(p.Tags) > 0 {
		names := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			names[i] = t.Name
		}
		data["keywords"] = strings.Join(names, ", ")
	}
	return marshalJsonLD(data)
}

func marshalJsonLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// JoinIDs formats an id list for a comma separated form field.
func JoinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}

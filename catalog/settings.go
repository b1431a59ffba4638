package catalog

import (
	"path"
	"strings"
)

// Default asset locations, relative to the site root.
const (
	DefaultImagesBaseURL     = "/assets/images/jerseys"
	DefaultThumbnailsBaseURL = "/assets/images/thumbnails"
)

// PublicConfig is the runtime override served at /api/config-public.
type PublicConfig struct {
	ImagesBaseURL     string `json:"images_base_url"`
	ThumbnailsBaseURL string `json:"thumbnails_base_url"`
	ItemsPerPage      int    `json:"items_per_page,omitempty"`
}

// Settings are the display settings every renderer needs.
type Settings struct {
	ImagesBaseURL     string
	ThumbnailsBaseURL string
	ItemsPerPage      int
}

// DefaultSettings returns the built-in display settings.
func DefaultSettings() Settings {
	return Settings{
		ImagesBaseURL:     DefaultImagesBaseURL,
		ThumbnailsBaseURL: DefaultThumbnailsBaseURL,
		ItemsPerPage:      DefaultPerPage,
	}
}

// Merge applies the non-empty values of a runtime override.
func (s Settings) Merge(pc PublicConfig) Settings {
	if pc.ImagesBaseURL != "" {
		s.ImagesBaseURL = pc.ImagesBaseURL
	}
	if pc.ThumbnailsBaseURL != "" {
		s.ThumbnailsBaseURL = pc.ThumbnailsBaseURL
	}
	if pc.ItemsPerPage > 0 {
		s.ItemsPerPage = pc.ItemsPerPage
	}
	return s
}

// Public returns the settings in their /api/config-public form.
func (s Settings) Public() PublicConfig {
	return PublicConfig{
		ImagesBaseURL:     s.ImagesBaseURL,
		ThumbnailsBaseURL: s.ThumbnailsBaseURL,
		ItemsPerPage:      s.ItemsPerPage,
	}
}

// ImageURL returns the URL of a full-size image file.
func (s Settings) ImageURL(file string) string {
	return joinAsset(s.ImagesBaseURL, file)
}

// ThumbnailURL returns the URL of a thumbnail file.
func (s Settings) ThumbnailURL(file string) string {
	return joinAsset(s.ThumbnailsBaseURL, file)
}

func joinAsset(base, file string) string {
	if file == "" {
		return ""
	}
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") || strings.HasPrefix(file, "/") {
		return file
	}
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return strings.TrimRight(base, "/") + "/" + file
	}
	return path.Join(base, file)
}

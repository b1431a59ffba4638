package jerseyfolio

import "embed"

// EmbeddedAssets contains the static assets shipped with the server:
// live.js, which reloads pages when the catalog changes.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

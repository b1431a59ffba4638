// Package stats counts jersey detail views without storing addresses. A
// visitor is a salted hash of IP and User-Agent, bots are ignored, and each
// visitor counts at most once per jersey per day.
package stats

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VisitorID creates a salted visitor ID from IP and User-Agent.
func VisitorID(salt, ip, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(salt + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func newSalt() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
	"curl/", "wget/", "python-requests", "go-http-client",
}

// IsBot reports whether the User-Agent is likely a bot, crawler or script.
// An empty User-Agent counts as a bot.
func IsBot(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return true
	}
	for _, bot := range botMarkers {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}

// Device classifies a User-Agent as Desktop, Mobile or Tablet.
func Device(ua string) string {
	ua = strings.ToLower(ua)
	// iPad user agents contain "mobile" too
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

// Browser names the browser family of a User-Agent.
func Browser(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		return "Opera"
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Other"
	}
}

// Package markdown renders jersey descriptions, written in Markdown, as
// sanitized HTML templ components.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	converter = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("loading").OnElements("img")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the sanitized HTML representation of md to buf.
// Input goldmark cannot convert is written as escaped text.
func RenderMarkdown(buf *bytes.Buffer, md string) {
	if strings.TrimSpace(md) == "" {
		return
	}
	var raw bytes.Buffer
	if err := converter.Convert([]byte(md), &raw); err != nil {
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(md))
		buf.WriteString("</p>")
		return
	}
	buf.Write(policy.SanitizeBytes(raw.Bytes()))
}

// ToHTML is RenderMarkdown returning a string.
func ToHTML(md string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, md)
	return buf.String()
}

// PlainText strips formatting from md, for feeds and meta descriptions.
func PlainText(md string) string {
	text := bluemonday.StrictPolicy().Sanitize(ToHTML(md))
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// SafeURL returns raw if it is a relative URL or uses http(s) or mailto, and
// "#" otherwise.
func SafeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return raw
	}
	return "#"
}

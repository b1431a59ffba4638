package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderMarkdownInline(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"`code`", "<code>code</code>"},
		{"~~gone~~", "<del>gone</del>"},
	}
	for _, tt := range tests {
		got := ToHTML(tt.input)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("ToHTML(%q) = %q, want it to contain %q", tt.input, got, tt.contains)
		}
	}
}

func TestRenderMarkdownHardWraps(t *testing.T) {
	got := ToHTML("Worn in the 1998 final\nSigned by the squad")
	if !strings.Contains(got, "<br") {
		t.Errorf("expected a line break, got %q", got)
	}
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	tests := []string{
		"<script>alert(1)</script>",
		"[click](javascript:alert(1))",
		`<img src="x.jpg" onerror="alert(1)">`,
	}
	for _, in := range tests {
		got := ToHTML(in)
		for _, bad := range []string{"<script", "javascript:", "onerror"} {
			if strings.Contains(got, bad) {
				t.Errorf("ToHTML(%q) = %q, contains %q", in, got, bad)
			}
		}
	}
}

func TestRenderMarkdownLinksNoFollow(t *testing.T) {
	got := ToHTML("[club](https://example.com)")
	if !strings.Contains(got, `rel="nofollow`) {
		t.Errorf("expected nofollow link, got %q", got)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderMarkdown(&buf, "  \n ")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("# Home kit").Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Home kit</h1>") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("**Home** kit\n\n*1998*  & more")
	if got != "Home kit 1998 & more" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com", "https://example.com"},
		{"/jersey/1/", "/jersey/1/"},
		{"mailto:club@example.com", "mailto:club@example.com"},
		{"javascript:alert(1)", "#"},
		{"data:text/html;base64,xx", "#"},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

package render

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuchenq/mpharvest/internal/types"
)

// JSONRenderer writes the article as an indented JSON document.
type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

func (r *JSONRenderer) Format() string    { return "json" }
func (r *JSONRenderer) Extension() string { return "json" }
func (r *JSONRenderer) Available() bool   { return true }

func (r *JSONRenderer) Render(a *types.Article, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return &types.RenderError{Format: "json", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &types.RenderError{Format: "json", Path: path, Err: err}
	}
	return nil
}

// HTMLRenderer wraps the extracted content in a standalone styled page.
// Image references in the content are already relative to the export
// directory, which is where the page lands, so they resolve as-is.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer { return &HTMLRenderer{} }

func (r *HTMLRenderer) Format() string    { return "html" }
func (r *HTMLRenderer) Extension() string { return "html" }
func (r *HTMLRenderer) Available() bool   { return true }

const htmlShell = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { max-width: 720px; margin: 2em auto; padding: 0 1em;
       font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif;
       line-height: 1.75; color: #333; }
.meta { color: #888; font-size: 0.9em; border-bottom: 1px solid #eee;
        padding-bottom: 1em; margin-bottom: 1.5em; }
.content img { max-width: 100%%; height: auto; }
h1 { line-height: 1.3; }
</style>
</head>
<body>
<h1>%s</h1>
<div class="meta">%s</div>
<div class="content">
%s
</div>
</body>
</html>
`

func (r *HTMLRenderer) Render(a *types.Article, path string) error {
	var meta []string
	if a.AccountName != "" {
		meta = append(meta, html.EscapeString(a.AccountName))
	}
	if a.Author != "" {
		meta = append(meta, html.EscapeString(a.Author))
	}
	if a.PublishTime != "" {
		meta = append(meta, html.EscapeString(a.PublishTime))
	}

	page := fmt.Sprintf(htmlShell,
		html.EscapeString(a.Title),
		html.EscapeString(a.Title),
		strings.Join(meta, " · "),
		a.Content,
	)
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return &types.RenderError{Format: "html", Path: path, Err: err}
	}
	return nil
}

// TextRenderer writes a metadata header followed by the tag-stripped
// article text.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

func (r *TextRenderer) Format() string    { return "txt" }
func (r *TextRenderer) Extension() string { return "txt" }
func (r *TextRenderer) Available() bool   { return true }

func (r *TextRenderer) Render(a *types.Article, path string) error {
	if err := os.WriteFile(path, []byte(plainText(a)), 0o644); err != nil {
		return &types.RenderError{Format: "txt", Path: path, Err: err}
	}
	return nil
}

// plainText renders the article header block plus stripped body text.
// Shared with the document-format fallback artifacts.
func plainText(a *types.Article) string {
	var b strings.Builder
	b.WriteString(a.Title + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	writeField := func(name, val string) {
		if val != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, val)
		}
	}
	writeField("Account", a.AccountName)
	writeField("Author", a.Author)
	writeField("Published", a.PublishTime)
	writeField("URL", a.URL)
	b.WriteString("\n")
	b.WriteString(StripTags(a.Content))
	b.WriteString("\n")
	return b.String()
}

// StripTags reduces an HTML fragment to readable text, keeping
// paragraph breaks.
func StripTags(htmlSrc string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return htmlSrc
	}
	doc.Find("script, style").Remove()

	var parts []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, section, div").Each(func(i int, s *goquery.Selection) {
		// Leaf blocks only, so nested containers do not duplicate text
		if s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, section, div").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}

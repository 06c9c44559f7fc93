package render

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/yuchenq/mpharvest/internal/types"
)

// MarkdownRenderer converts the HTML content to Markdown through a
// fixed substitution pass, with a bold metadata header on top.
type MarkdownRenderer struct{}

func NewMarkdownRenderer() *MarkdownRenderer { return &MarkdownRenderer{} }

func (r *MarkdownRenderer) Format() string    { return "md" }
func (r *MarkdownRenderer) Extension() string { return "md" }
func (r *MarkdownRenderer) Available() bool   { return true }

var mdRules = []struct {
	re  *regexp.Regexp
	sub string
}{
	{regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`), "\n# $1\n"},
	{regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`), "\n## $1\n"},
	{regexp.MustCompile(`(?is)<h3[^>]*>(.*?)</h3>`), "\n### $1\n"},
	{regexp.MustCompile(`(?is)<h4[^>]*>(.*?)</h4>`), "\n#### $1\n"},
	{regexp.MustCompile(`(?is)<h5[^>]*>(.*?)</h5>`), "\n##### $1\n"},
	{regexp.MustCompile(`(?is)<h6[^>]*>(.*?)</h6>`), "\n###### $1\n"},
	{regexp.MustCompile(`(?is)<(strong|b)[^>]*>(.*?)</(strong|b)>`), "**$2**"},
	{regexp.MustCompile(`(?is)<(em|i)[^>]*>(.*?)</(em|i)>`), "*$2*"},
	{regexp.MustCompile(`(?is)<img[^>]*src=["']([^"']+)["'][^>]*>`), "\n![]($1)\n"},
	{regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`), "\n- $1"},
	{regexp.MustCompile(`(?is)<blockquote[^>]*>(.*?)</blockquote>`), "\n> $1\n"},
	{regexp.MustCompile(`(?i)<br\s*/?>`), "\n"},
	{regexp.MustCompile(`(?is)<p[^>]*>`), "\n\n"},
	{regexp.MustCompile(`(?i)</p>`), "\n"},
	{regexp.MustCompile(`(?s)<[^>]+>`), ""},
}

var mdBlankLines = regexp.MustCompile(`\n{3,}`)

func (r *MarkdownRenderer) Render(a *types.Article, path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	writeField := func(name, val string) {
		if val != "" {
			fmt.Fprintf(&b, "**%s**: %s  \n", name, val)
		}
	}
	writeField("Account", a.AccountName)
	writeField("Author", a.Author)
	writeField("Published", a.PublishTime)
	writeField("Source", a.URL)
	b.WriteString("\n---\n")
	b.WriteString(htmlToMarkdown(a.Content))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &types.RenderError{Format: "md", Path: path, Err: err}
	}
	return nil
}

// htmlToMarkdown applies the substitution rules in order and cleans
// up whitespace and entities.
func htmlToMarkdown(src string) string {
	out := src
	for _, rule := range mdRules {
		out = rule.re.ReplaceAllString(out, rule.sub)
	}
	out = html.UnescapeString(out)
	out = mdBlankLines.ReplaceAllString(out, "\n\n")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

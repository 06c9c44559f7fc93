package extract

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
)

// metaTimeXPaths are tried in order against the page head.
var metaTimeXPaths = []string{
	"//meta[@property='article:published_time']/@content",
	"//meta[@property='og:article:published_time']/@content",
	"//meta[@itemprop='datePublished']/@content",
	"//meta[@name='publish_date']/@content",
}

// scriptTimeVars matches the inline `var publish_time = "..."` the
// platform embeds in article pages.
var scriptTimeVars = regexp.MustCompile(`publish_time\s*=\s*["'](\d{4}-\d{2}-\d{2}[^"']*)["']`)

// metaPublishTime extracts a publish time from meta tags or inline
// script variables. Returns "" when nothing date-shaped is found.
func metaPublishTime(htmlSrc string) string {
	doc, err := htmlquery.Parse(strings.NewReader(htmlSrc))
	if err == nil {
		for _, xp := range metaTimeXPaths {
			nodes, err := htmlquery.QueryAll(doc, xp)
			if err != nil || len(nodes) == 0 {
				continue
			}
			val := strings.TrimSpace(htmlquery.InnerText(nodes[0]))
			if m := dateShaped.FindString(val); m != "" {
				return normalizeDate(m)
			}
		}
	}

	if m := scriptTimeVars.FindStringSubmatch(htmlSrc); len(m) == 2 {
		if d := dateShaped.FindString(m[1]); d != "" {
			return normalizeDate(d)
		}
	}
	return ""
}

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuchenq/mpharvest/internal/types"
)

// minContentLength is the quality gate for a recognized container.
const minContentLength = 50

// minScanLength is the higher bar for the generic best-div scan.
const minScanLength = 200

// contentSelectors is the cascade of known article containers, most
// specific first.
var contentSelectors = []string{
	"#js_content",
	".rich_media_content",
	".rich_media_area_primary",
	".appmsg_wrapper",
	".rich_media_area_extra",
	".rich_media_wrp",
	".appmsg_content",
	".msg_content",
	".article_content",
	".content",
	".post_content",
}

// authorSelectors locate the author byline.
var authorSelectors = []string{
	"span.rich_media_meta_text",
	"a#js_name",
	"span.author",
	"div.author_name",
	"span.profile_nickname",
}

// timeSelectors locate the publish time on the page.
var timeSelectors = []string{
	"em#publish_time",
	"em#post-date",
	"span.rich_media_meta_text",
	"time",
	"span.time",
	"div.publish_time",
}

// skipClasses marks non-content regions excluded from the div scan.
var skipClasses = []string{
	"nav", "menu", "sidebar", "footer", "header",
	"ad", "advert", "comment", "share", "related",
}

var dateShaped = regexp.MustCompile(`\d{4}[-/年.]\s?\d{1,2}[-/月.]\s?\d{1,2}`)

// PageFetcher retrieves the raw HTML of an article page.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// AssetResolver rewrites image references inside the chosen container
// to local paths, downloading as it goes.
type AssetResolver interface {
	Rewrite(ctx context.Context, container *goquery.Selection, imagesDir string)
}

// Extractor pulls article content and metadata out of fetched pages.
type Extractor struct {
	pages  PageFetcher
	assets AssetResolver
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor. assets may be nil, in which case
// image references are left pointing at their remote URLs.
func NewExtractor(pages PageFetcher, assets AssetResolver, logger *slog.Logger) *Extractor {
	return &Extractor{
		pages:  pages,
		assets: assets,
		logger: logger.With("component", "extractor"),
		now:    time.Now,
	}
}

// FetchDetail fetches an article page and extracts its content and
// metadata. imagesDir is where resolved images land; empty disables
// image resolution. An error here means the article counts as failed.
func (e *Extractor) FetchDetail(ctx context.Context, rawURL, imagesDir string) (*types.ArticleDetail, error) {
	htmlSrc, err := e.pages.FetchHTML(ctx, rawURL)
	if err != nil {
		return nil, &types.ExtractError{URL: rawURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, &types.ExtractError{URL: rawURL, Err: fmt.Errorf("parse page: %w", err)}
	}

	container, degraded := e.findContent(doc)
	if container == nil {
		return nil, &types.ExtractError{URL: rawURL, Err: types.ErrEmptyContent}
	}
	if degraded {
		e.logger.Warn("no article container recognized, using whole-page text", "url", rawURL)
	}

	if e.assets != nil && imagesDir != "" && !degraded {
		e.assets.Rewrite(ctx, container, imagesDir)
	}

	content, err := goquery.OuterHtml(container)
	if err != nil {
		return nil, &types.ExtractError{URL: rawURL, Err: fmt.Errorf("serialize content: %w", err)}
	}

	detail := &types.ArticleDetail{
		URL:         rawURL,
		Content:     content,
		Author:      e.findAuthor(doc),
		PublishTime: e.findPublishTime(doc, htmlSrc),
		Degraded:    degraded,
	}
	return detail, nil
}

// findContent walks the selector cascade and returns the best
// container, falling back to a scored div scan and finally the whole
// body. degraded is true only for the whole-body fallback.
func (e *Extractor) findContent(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, sel := range contentSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if textLen(s) >= minContentLength {
			e.logger.Debug("content container matched", "selector", sel)
			return s, false
		}
	}

	if best := e.scanDivs(doc); best != nil {
		return best, false
	}

	for _, tag := range []string{"article", "main"} {
		s := doc.Find(tag).First()
		if s.Length() > 0 && textLen(s) >= minContentLength {
			e.logger.Debug("content container matched", "selector", tag)
			return s, false
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, false
	}
	body.Find("script, style, noscript").Remove()
	if textLen(body) < minContentLength {
		return nil, false
	}
	return body, true
}

// scanDivs picks the div with the most text, ignoring obvious chrome.
func (e *Extractor) scanDivs(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0

	doc.Find("div").Each(func(i int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		lower := strings.ToLower(class)
		for _, skip := range skipClasses {
			if strings.Contains(lower, skip) {
				return
			}
		}
		if n := textLen(s); n >= minScanLength && n > bestLen {
			best, bestLen = s, n
		}
	})

	if best != nil {
		e.logger.Debug("content found via div scan", "length", bestLen)
	}
	return best
}

func (e *Extractor) findAuthor(doc *goquery.Document) string {
	for _, sel := range authorSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// findPublishTime tries the page selectors, then meta tags, then
// falls back to the current date.
func (e *Extractor) findPublishTime(doc *goquery.Document, htmlSrc string) string {
	for _, sel := range timeSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if m := dateShaped.FindString(text); m != "" {
			return normalizeDate(m)
		}
	}

	if meta := metaPublishTime(htmlSrc); meta != "" {
		return meta
	}

	return e.now().Format("2006-01-02")
}

// normalizeDate rewrites CJK and slash date separators to dashes.
func normalizeDate(s string) string {
	r := strings.NewReplacer("年", "-", "月", "-", "日", "", "/", "-", ".", "-", " ", "")
	return r.Replace(s)
}

func textLen(s *goquery.Selection) int {
	return len(strings.TrimSpace(s.Text()))
}

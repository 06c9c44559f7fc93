package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yuchenq/mpharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// stubPages serves canned HTML per URL.
type stubPages map[string]string

func (p stubPages) FetchHTML(ctx context.Context, url string) (string, error) {
	body, ok := p[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return body, nil
}

func fixedExtractor(pages stubPages) *Extractor {
	e := NewExtractor(pages, nil, testLogger)
	e.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	return e
}

func longText(n int) string {
	return strings.Repeat("正文内容 body text. ", n)
}

func TestExtractPrimaryContainer(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
		<div class="sidebar">%s</div>
		<div id="js_content">%s</div>
	</body></html>`, longText(30), longText(20))

	e := fixedExtractor(stubPages{"https://mp.example.com/s/a": page})
	detail, err := e.FetchDetail(context.Background(), "https://mp.example.com/s/a", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if !strings.Contains(detail.Content, `id="js_content"`) {
		t.Error("primary container should win even when the sidebar has more text")
	}
	if detail.Degraded {
		t.Error("recognized container must not be marked degraded")
	}
}

func TestExtractShortContainerFallsThrough(t *testing.T) {
	// #js_content exists but is under the quality gate; the class
	// container carries the real content.
	page := fmt.Sprintf(`<html><body>
		<div id="js_content">too short</div>
		<div class="rich_media_content">%s</div>
	</body></html>`, longText(20))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if !strings.Contains(detail.Content, "rich_media_content") {
		t.Error("cascade should pass over the short container")
	}
}

func TestExtractDivScanSkipsChrome(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
		<div class="main-nav">%s</div>
		<div class="story">%s</div>
	</body></html>`, longText(40), longText(25))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if !strings.Contains(detail.Content, "story") || strings.Contains(detail.Content, "main-nav") {
		t.Errorf("div scan picked the wrong container")
	}
}

func TestExtractArticleTagFallback(t *testing.T) {
	page := fmt.Sprintf(`<html><body><article>%s</article></body></html>`, longText(10))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if !strings.HasPrefix(detail.Content, "<article>") {
		t.Error("expected the article tag fallback")
	}
}

func TestExtractWholePageDegraded(t *testing.T) {
	page := fmt.Sprintf(`<html><body><script>var x=1;</script><p>%s</p></body></html>`, longText(10))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if !detail.Degraded {
		t.Error("whole-body fallback must be marked degraded")
	}
	if strings.Contains(detail.Content, "var x=1") {
		t.Error("scripts should be stripped from the degraded body")
	}
}

func TestExtractEmptyPageFails(t *testing.T) {
	e := fixedExtractor(stubPages{"u": "<html><body><p>hi</p></body></html>"})
	_, err := e.FetchDetail(context.Background(), "u", "")
	if !errors.Is(err, types.ErrEmptyContent) {
		t.Fatalf("want ErrEmptyContent, got %v", err)
	}
}

func TestExtractFetchErrorWraps(t *testing.T) {
	e := fixedExtractor(stubPages{})
	_, err := e.FetchDetail(context.Background(), "missing", "")
	var xerr *types.ExtractError
	if !errors.As(err, &xerr) {
		t.Fatalf("want ExtractError, got %T", err)
	}
}

func TestExtractAuthorAndTime(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
		<a id="js_name"> 测试公众号 </a>
		<em id="publish_time">2026年3月12日</em>
		<div id="js_content">%s</div>
	</body></html>`, longText(10))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if detail.Author != "测试公众号" {
		t.Errorf("author = %q", detail.Author)
	}
	if detail.PublishTime != "2026-3-12" {
		t.Errorf("publish time = %q", detail.PublishTime)
	}
}

func TestExtractTimeFromMetaTag(t *testing.T) {
	page := fmt.Sprintf(`<html><head>
		<meta property="article:published_time" content="2026-02-01T08:00:00Z">
	</head><body><div id="js_content">%s</div></body></html>`, longText(10))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if detail.PublishTime != "2026-02-01" {
		t.Errorf("publish time = %q", detail.PublishTime)
	}
}

func TestExtractTimeDefaultsToToday(t *testing.T) {
	page := fmt.Sprintf(`<html><body><div id="js_content">%s</div></body></html>`, longText(10))

	e := fixedExtractor(stubPages{"u": page})
	detail, err := e.FetchDetail(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("fetch detail: %v", err)
	}
	if detail.PublishTime != "2026-03-15" {
		t.Errorf("publish time = %q, want the clock date", detail.PublishTime)
	}
}

func TestExtractTimeFromScriptVar(t *testing.T) {
	src := `<html><head><script>var publish_time = "2026-01-20 09:30" || "";</script></head></html>`
	if got := metaPublishTime(src); got != "2026-01-20" {
		t.Errorf("metaPublishTime = %q", got)
	}
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/render"
	"github.com/yuchenq/mpharvest/internal/types"
)

// Lister walks the account feed. Satisfied by feed.Walker.
type Lister interface {
	List(ctx context.Context, start, end time.Time) ([]*types.ArticleStub, error)
}

// DetailFetcher pulls one article page. Satisfied by extract.Extractor.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url, imagesDir string) (*types.ArticleDetail, error)
}

// Renderer writes an article in the requested formats. Satisfied by
// render.Registry.
type Renderer interface {
	Render(article *types.Article, formats []string, dir string) map[string]bool
}

// Collector drives a collection run: feed walk, per-article
// extraction, multi-format export, and failure bookkeeping. Work is
// strictly sequential; the only locking is a per-account mutex so two
// runs cannot interleave writes into one account directory.
type Collector struct {
	cfg       *config.Config
	lister    Lister
	fetcher   DetailFetcher
	renderer  Renderer
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	statsMu sync.Mutex
	stats   types.RunStats
}

// New creates a Collector.
func New(cfg *config.Config, lister Lister, fetcher DetailFetcher, renderer Renderer, logger *slog.Logger) *Collector {
	return &Collector{
		cfg:      cfg,
		lister:   lister,
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logger.With("component", "collector"),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
		stats:    types.RunStats{StartTime: time.Now()},
	}
}

// CollectAndExport walks the feed for the named account within the
// optional window and exports every collected article in the given
// formats. It always returns a result, never an error: partial output
// is still output, and the failures land in a manifest for retry.
func (c *Collector) CollectAndExport(ctx context.Context, account string, formats []string, start, end time.Time) *types.RunResult {
	unlock := c.lockAccount(account)
	defer unlock()

	if len(formats) == 0 {
		formats = c.cfg.Collector.Formats
	}

	stubs, err := c.lister.List(ctx, start, end)
	if err != nil {
		if errors.Is(err, types.ErrMissingCredentials) {
			c.logger.Error("collection aborted", "account", account, "error", err)
			return &types.RunResult{Success: false, Message: "token and fakeid must be configured before collecting"}
		}
		if len(stubs) == 0 {
			c.logger.Error("listing failed", "account", account, "error", err)
			return &types.RunResult{Success: false, Message: fmt.Sprintf("listing failed: %v", err)}
		}
		c.logger.Warn("listing incomplete, continuing with partial feed", "account", account, "stubs", len(stubs), "error", err)
	}

	if len(stubs) == 0 {
		return &types.RunResult{Success: true, Message: "no articles in the requested window"}
	}

	return c.export(ctx, account, stubs, formats)
}

// CollectFromFailedLinks retries exactly the articles recorded in a
// failure manifest.
func (c *Collector) CollectFromFailedLinks(ctx context.Context, manifestPath string, formats []string) *types.RunResult {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return &types.RunResult{Success: false, Message: fmt.Sprintf("read manifest: %v", err)}
	}
	if len(manifest.Entries) == 0 {
		return &types.RunResult{Success: false, Message: types.ErrManifestEmpty.Error()}
	}

	unlock := c.lockAccount(manifest.AccountName)
	defer unlock()

	if len(formats) == 0 {
		formats = c.cfg.Collector.Formats
	}

	stubs := make([]*types.ArticleStub, 0, len(manifest.Entries))
	for _, e := range manifest.Entries {
		stubs = append(stubs, &types.ArticleStub{Title: e.Title, URL: e.URL, Source: "retry"})
	}

	c.logger.Info("retrying failed articles", "account", manifest.AccountName, "count", len(stubs))
	return c.export(ctx, manifest.AccountName, stubs, formats)
}

// export runs the sequential fetch-merge-render loop over the stubs.
func (c *Collector) export(ctx context.Context, account string, stubs []*types.ArticleStub, formats []string) *types.RunResult {
	accountDir := filepath.Join(c.cfg.Collector.OutputDir, render.Sanitize(account))
	imagesDir := filepath.Join(accountDir, "images")

	var failed []types.FailedEntry
	succeeded := 0

	for i, stub := range stubs {
		if i > 0 && c.cfg.Collector.ArticleDelay > 0 {
			select {
			case <-ctx.Done():
				c.logger.Warn("collection cancelled", "account", account, "done", i, "total", len(stubs))
				failed = append(failed, remainingAsFailed(stubs[i:], "cancelled")...)
				return c.finish(account, accountDir, succeeded, failed)
			case <-time.After(c.cfg.Collector.ArticleDelay):
			}
		}

		detail, err := c.fetcher.FetchDetail(ctx, stub.URL, imagesDir)
		if err != nil {
			c.logger.Warn("article failed", "url", stub.URL, "title", stub.Title, "error", err)
			failed = append(failed, types.FailedEntry{URL: stub.URL, Title: stub.Title, Reason: err.Error()})
			c.count(false)
			continue
		}

		article := types.Merge(account, stub, detail, c.now())
		results := c.renderer.Render(article, formats, accountDir)
		for format, ok := range results {
			if !ok {
				c.logger.Warn("format skipped", "format", format, "title", article.Title)
			}
		}

		// A render miss is not a collection failure; the article was
		// captured
		succeeded++
		c.count(true)
		c.logger.Info("article collected", "title", article.Title, "progress", fmt.Sprintf("%d/%d", i+1, len(stubs)))
	}

	return c.finish(account, accountDir, succeeded, failed)
}

// finish writes the failure manifest if needed and assembles the run
// result with a fresh export-directory scan.
func (c *Collector) finish(account, accountDir string, succeeded int, failed []types.FailedEntry) *types.RunResult {
	result := &types.RunResult{
		Success:         succeeded > 0 || len(failed) == 0,
		ArticlesCount:   succeeded,
		ExportDirectory: accountDir,
		Message:         fmt.Sprintf("collected %d articles (%d failed)", succeeded, len(failed)),
	}

	if len(failed) > 0 {
		path, err := WriteManifest(accountDir, account, failed, c.now())
		if err != nil {
			c.logger.Error("write failure manifest", "error", err)
		} else {
			result.FailedFile = path
			c.logger.Info("failure manifest written", "path", path, "failed", len(failed))
		}
	}

	stats, err := ScanExportStats(accountDir)
	if err != nil {
		c.logger.Warn("export stats scan failed", "dir", accountDir, "error", err)
	} else {
		result.ExportStats = stats
	}

	c.logger.Info("collection finished",
		"account", account,
		"collected", succeeded,
		"failed", len(failed),
		"dir", accountDir,
	)
	return result
}

// Stats returns a snapshot of the collector's lifetime counters.
func (c *Collector) Stats() map[string]any {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return map[string]any{
		"total_collected":  c.stats.TotalCollected,
		"success_count":    c.stats.SuccessCount,
		"error_count":      c.stats.ErrorCount,
		"success_rate":     c.stats.SuccessRate(),
		"duration_seconds": c.stats.Duration().Seconds(),
		"start_time":       c.stats.StartTime,
	}
}

func (c *Collector) count(ok bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.TotalCollected++
	if ok {
		c.stats.SuccessCount++
	} else {
		c.stats.ErrorCount++
	}
}

// lockAccount serializes runs against one account directory.
func (c *Collector) lockAccount(account string) func() {
	c.mu.Lock()
	lock, ok := c.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[account] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func remainingAsFailed(stubs []*types.ArticleStub, reason string) []types.FailedEntry {
	out := make([]types.FailedEntry, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, types.FailedEntry{URL: s.URL, Title: s.Title, Reason: reason})
	}
	return out
}

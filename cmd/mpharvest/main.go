package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuchenq/mpharvest/internal/assets"
	"github.com/yuchenq/mpharvest/internal/collector"
	"github.com/yuchenq/mpharvest/internal/config"
	"github.com/yuchenq/mpharvest/internal/extract"
	"github.com/yuchenq/mpharvest/internal/feed"
	"github.com/yuchenq/mpharvest/internal/render"
	"github.com/yuchenq/mpharvest/internal/storage"
	"github.com/yuchenq/mpharvest/internal/types"
)

var (
	cfgFile    string
	verbose    bool
	token      string
	cookie     string
	fakeID     string
	outputDir  string
	formatList string
	useBrowser bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mpharvest",
		Short: "mpharvest — WeChat official account article collector",
		Long: `mpharvest collects articles from WeChat official accounts and
exports them as json, html, txt, md, pdf and docx, with images
downloaded locally. Failed articles are recorded for retry, and the
monitor service keeps accounts checked on a schedule.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(rangeCmd())
	rootCmd.AddCommand(retryFailedCmd())
	rootCmd.AddCommand(failedCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [account]",
		Short: "Collect all articles of an account",
		Long:  "Walk the account feed from newest to oldest and export every article.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(args[0], "", "")
		},
	}
	addCollectFlags(cmd)
	return cmd
}

// rangeCmd creates the "range" subcommand.
func rangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range [account] [start] [end]",
		Short: "Collect articles within a date window",
		Long: `Collect articles published between start and end (inclusive).
Dates are YYYYMMDD or YYYY-MM-DD; an omitted end leaves the window
open toward today.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			end := ""
			if len(args) == 3 {
				end = args[2]
			}
			return runCollect(args[0], args[1], end)
		},
	}
	addCollectFlags(cmd)
	return cmd
}

func addCollectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&formatList, "formats", "f", "", "comma-separated export formats (json,html,txt,md,pdf,docx)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "export directory")
	cmd.Flags().StringVar(&token, "token", "", "mp platform session token")
	cmd.Flags().StringVar(&cookie, "cookie", "", "mp platform session cookie")
	cmd.Flags().StringVar(&fakeID, "fakeid", "", "official account fakeid (biz)")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "fetch article pages through a headless browser")
}

// runCollect executes the collect and range commands.
func runCollect(account, startArg, endArg string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	start, end := feed.ParseWindow(startArg, endArg, logger)

	c, cleanup, err := buildCollector(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := c.CollectAndExport(ctx, account, splitFormats(formatList), start, end)
	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// retryFailedCmd creates the "retry-failed" subcommand.
func retryFailedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry-failed [manifest]",
		Short: "Retry the articles recorded in a failure manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			c, cleanup, err := buildCollector(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result := c.CollectFromFailedLinks(ctx, args[0], splitFormats(formatList))
			printResult(result)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatList, "formats", "f", "", "comma-separated export formats")
	return cmd
}

// failedCmd creates the "failed" subcommand listing failure manifests.
func failedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List failure manifests awaiting retry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			manifests, err := storage.ListFailedManifests(cfg.Collector.OutputDir)
			if err != nil {
				return err
			}
			if len(manifests) == 0 {
				fmt.Println("No failure manifests found.")
				return nil
			}
			for _, m := range manifests {
				fmt.Printf("%s  %-24s %3d articles  %s\n",
					m.FailedAt.Format("2006-01-02 15:04"), m.Account, m.EntryCount, m.Path)
			}
			return nil
		},
	}
}

// accountsCmd creates the "accounts" subcommand.
func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List collected accounts and their export inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			accounts, err := storage.ScanAccounts(cfg.Collector.OutputDir)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Printf("No accounts collected yet under %s\n", cfg.Collector.OutputDir)
				return nil
			}
			for _, a := range accounts {
				fmt.Printf("%s\n", a.Name)
				for _, ext := range config.ExportFormats {
					if n := a.ArticleCounts[ext]; n > 0 {
						fmt.Printf("  %-6s %d\n", ext, n)
					}
				}
				fmt.Printf("  images %d\n", a.ImageCount)
				if a.ManifestCount > 0 {
					fmt.Printf("  failure manifests: %d\n", a.ManifestCount)
				}
				fmt.Printf("  size   %.1f KB\n", float64(a.TotalSize)/1024)
			}
			return nil
		},
	}
}

// showCmd creates the "show" subcommand.
func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [article.json]",
		Short: "Preview an exported article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := storage.LoadArticle(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Title:     %s\n", article.Title)
			fmt.Printf("Account:   %s\n", article.AccountName)
			fmt.Printf("Author:    %s\n", article.Author)
			fmt.Printf("Published: %s\n", article.PublishTime)
			fmt.Printf("URL:       %s\n", article.URL)
			if article.Degraded {
				fmt.Println("Note:      content was captured in degraded whole-page mode")
			}

			text := render.StripTags(article.Content)
			const previewLimit = 500
			if runes := []rune(text); len(runes) > previewLimit {
				text = string(runes[:previewLimit]) + "…"
			}
			fmt.Printf("\n%s\n", text)
			return nil
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("API:\n")
			fmt.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
			fmt.Printf("  Token set:       %v\n", cfg.API.Token != "")
			fmt.Printf("  Cookie set:      %v\n", cfg.API.Cookie != "")
			fmt.Printf("  Fakeid set:      %v\n", cfg.API.FakeID != "")
			fmt.Printf("  Page Size:       %d\n", cfg.API.PageSize)
			fmt.Printf("  Page Delay:      %s\n", cfg.API.PageDelay)
			fmt.Printf("\nCollector:\n")
			fmt.Printf("  Output Dir:      %s\n", cfg.Collector.OutputDir)
			fmt.Printf("  Formats:         %s\n", strings.Join(cfg.Collector.Formats, ", "))
			fmt.Printf("  Article Delay:   %s\n", cfg.Collector.ArticleDelay)
			fmt.Printf("  Image Delay:     %s\n", cfg.Collector.ImageDelay)
			fmt.Printf("  PDF Font:        %s\n", orUnset(cfg.Collector.PDFFont))
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Enabled:         %v\n", cfg.Browser.Enabled)
			fmt.Printf("  Stealth:         %v\n", cfg.Browser.Stealth)
			fmt.Printf("\nMonitor:\n")
			fmt.Printf("  Config File:     %s\n", cfg.Monitor.ConfigFile)
			fmt.Printf("  Default Interval: %s\n", cfg.Monitor.DefaultInterval)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mpharvest %s\n", config.Version)
		},
	}
}

// setup loads config, applies CLI overrides and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if token != "" {
		cfg.API.Token = token
	}
	if cookie != "" {
		cfg.API.Cookie = cookie
	}
	if fakeID != "" {
		cfg.API.FakeID = fakeID
	}
	if outputDir != "" {
		cfg.Collector.OutputDir = outputDir
	}
	if formats := splitFormats(formatList); len(formats) > 0 {
		cfg.Collector.Formats = formats
	}
	if useBrowser {
		cfg.Browser.Enabled = true
	}
}

// buildCollector wires the feed session, extractor and renderers into
// a collector. The returned cleanup closes network resources.
func buildCollector(cfg *config.Config, logger *slog.Logger) (*collector.Collector, func(), error) {
	session := feed.NewSession(cfg, logger)
	walker := feed.NewWalker(session, cfg, logger)
	assetFetcher := assets.NewFetcher(session, cfg, logger)

	var pages extract.PageFetcher = session
	cleanup := func() { session.Close() }

	if cfg.Browser.Enabled {
		browser, err := feed.NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		pages = browser
		cleanup = func() {
			browser.Close()
			session.Close()
		}
	}

	extractor := extract.NewExtractor(pages, assetFetcher, logger)
	registry := render.NewRegistry(cfg.Collector.PDFFont, logger)
	return collector.New(cfg, walker, extractor, registry, logger), cleanup, nil
}

func splitFormats(list string) []string {
	if list == "" {
		return nil
	}
	var formats []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

func printResult(result *types.RunResult) {
	if result.Success {
		fmt.Printf("\n✅ %s\n", result.Message)
	} else {
		fmt.Printf("\n❌ %s\n", result.Message)
		return
	}
	if result.ExportDirectory != "" {
		fmt.Printf("   Output:   %s\n", result.ExportDirectory)
	}
	for _, ext := range config.ExportFormats {
		if n := result.ExportStats[ext]; n > 0 {
			fmt.Printf("   %-6s    %d on disk\n", ext, n)
		}
	}
	if result.FailedFile != "" {
		fmt.Printf("   Failures: %s (retry with `mpharvest retry-failed`)\n", result.FailedFile)
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

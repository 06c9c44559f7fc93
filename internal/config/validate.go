package config

import (
	"fmt"
	"net/url"
)

// ExportFormats lists all output formats the renderer registry knows.
var ExportFormats = []string{"json", "html", "txt", "md", "pdf", "docx"}

// Validate checks the configuration for invalid values. Credentials
// are checked at run time, not here: config inspection must work
// without a token.
func Validate(cfg *Config) error {
	if _, err := url.Parse(cfg.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if cfg.API.PageSize < 1 {
		return fmt.Errorf("api.page_size must be >= 1, got %d", cfg.API.PageSize)
	}
	if cfg.API.PageSize > 20 {
		return fmt.Errorf("api.page_size must be <= 20, got %d", cfg.API.PageSize)
	}
	if cfg.API.PageDelay < 0 {
		return fmt.Errorf("api.page_delay must be >= 0")
	}
	if cfg.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be > 0")
	}
	if cfg.API.MaxBodySize <= 0 {
		return fmt.Errorf("api.max_body_size must be > 0")
	}

	if cfg.Collector.OutputDir == "" {
		return fmt.Errorf("collector.output_dir must not be empty")
	}
	if cfg.Collector.ArticleDelay < 0 {
		return fmt.Errorf("collector.article_delay must be >= 0")
	}
	if cfg.Collector.ImageDelay < 0 {
		return fmt.Errorf("collector.image_delay must be >= 0")
	}
	for _, f := range cfg.Collector.Formats {
		if !ValidFormat(f) {
			return fmt.Errorf("collector.formats contains unsupported format %q (valid: %v)", f, ExportFormats)
		}
	}

	if cfg.Monitor.DefaultInterval <= 0 {
		return fmt.Errorf("monitor.default_interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidFormat reports whether name is a known export format.
func ValidFormat(name string) bool {
	for _, f := range ExportFormats {
		if f == name {
			return true
		}
	}
	return false
}

// ValidateURL checks if a URL string is usable for article fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

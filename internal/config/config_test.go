package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.API.PageSize = 0 }},
		{"huge page size", func(c *Config) { c.API.PageSize = 100 }},
		{"negative page delay", func(c *Config) { c.API.PageDelay = -time.Second }},
		{"zero timeout", func(c *Config) { c.API.RequestTimeout = 0 }},
		{"empty output dir", func(c *Config) { c.Collector.OutputDir = "" }},
		{"unknown format", func(c *Config) { c.Collector.Formats = []string{"epub"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "logfmt" }},
		{"zero monitor interval", func(c *Config) { c.Monitor.DefaultInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mpharvest.yaml")
	yaml := `
api:
  token: "123456"
  fakeid: "MzI5NTg0"
  page_delay: 1s
collector:
  output_dir: /tmp/out
  formats: [json, pdf]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.Token != "123456" {
		t.Errorf("token: got %q", cfg.API.Token)
	}
	if cfg.API.FakeID != "MzI5NTg0" {
		t.Errorf("fakeid: got %q", cfg.API.FakeID)
	}
	if cfg.API.PageDelay != time.Second {
		t.Errorf("page_delay: got %s", cfg.API.PageDelay)
	}
	if cfg.Collector.OutputDir != "/tmp/out" {
		t.Errorf("output_dir: got %q", cfg.Collector.OutputDir)
	}
	if len(cfg.Collector.Formats) != 2 || cfg.Collector.Formats[1] != "pdf" {
		t.Errorf("formats: got %v", cfg.Collector.Formats)
	}
	// Untouched keys keep defaults
	if cfg.API.PageSize != 5 {
		t.Errorf("page_size default lost: got %d", cfg.API.PageSize)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range ExportFormats {
		if !ValidFormat(f) {
			t.Errorf("%s should be valid", f)
		}
	}
	if ValidFormat("yaml") {
		t.Error("yaml should not be a valid export format")
	}
}

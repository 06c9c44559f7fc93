package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for mpharvest.
type Config struct {
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Monitor   MonitorConfig   `mapstructure:"monitor"   yaml:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// APIConfig holds credentials and tuning for the publishing-platform
// listing API.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"        yaml:"base_url"`
	Token          string        `mapstructure:"token"           yaml:"token"`
	Cookie         string        `mapstructure:"cookie"          yaml:"cookie"`
	FakeID         string        `mapstructure:"fakeid"          yaml:"fakeid"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	PageSize       int           `mapstructure:"page_size"       yaml:"page_size"`
	PageDelay      time.Duration `mapstructure:"page_delay"      yaml:"page_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
}

// CollectorConfig controls collection and export behavior.
type CollectorConfig struct {
	OutputDir    string        `mapstructure:"output_dir"    yaml:"output_dir"`
	DataDir      string        `mapstructure:"data_dir"      yaml:"data_dir"`
	Formats      []string      `mapstructure:"formats"       yaml:"formats"`
	ArticleDelay time.Duration `mapstructure:"article_delay" yaml:"article_delay"`
	ImageDelay   time.Duration `mapstructure:"image_delay"   yaml:"image_delay"`
	MinImageSize int64         `mapstructure:"min_image_size" yaml:"min_image_size"`
	PDFFont      string        `mapstructure:"pdf_font"      yaml:"pdf_font"`
}

// BrowserConfig controls the optional headless-browser page fetch.
type BrowserConfig struct {
	Enabled     bool   `mapstructure:"enabled"       yaml:"enabled"`
	Stealth     bool   `mapstructure:"stealth"       yaml:"stealth"`
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowSize  string `mapstructure:"window_size"   yaml:"window_size"`
}

// MonitorConfig controls the account monitor service.
type MonitorConfig struct {
	ConfigFile      string        `mapstructure:"config_file"      yaml:"config_file"`
	DefaultInterval time.Duration `mapstructure:"default_interval" yaml:"default_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://mp.weixin.qq.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			PageSize:       5,
			PageDelay:      3 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    20 * 1024 * 1024, // 20MB
		},
		Collector: CollectorConfig{
			OutputDir:    "./exported_articles",
			DataDir:      "./data",
			Formats:      []string{"json", "html"},
			ArticleDelay: 2 * time.Second,
			ImageDelay:   500 * time.Millisecond,
			MinImageSize: 50,
		},
		Browser: BrowserConfig{
			Enabled: false,
			Stealth: true,
		},
		Monitor: MonitorConfig{
			ConfigFile:      "./data/monitor_config.json",
			DefaultInterval: 60 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

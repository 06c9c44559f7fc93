package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("MPHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("mpharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".mpharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("api.page_size", cfg.API.PageSize)
	v.SetDefault("api.page_delay", cfg.API.PageDelay)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)
	v.SetDefault("api.max_body_size", cfg.API.MaxBodySize)

	v.SetDefault("collector.output_dir", cfg.Collector.OutputDir)
	v.SetDefault("collector.data_dir", cfg.Collector.DataDir)
	v.SetDefault("collector.formats", cfg.Collector.Formats)
	v.SetDefault("collector.article_delay", cfg.Collector.ArticleDelay)
	v.SetDefault("collector.image_delay", cfg.Collector.ImageDelay)
	v.SetDefault("collector.min_image_size", cfg.Collector.MinImageSize)
	v.SetDefault("collector.pdf_font", cfg.Collector.PDFFont)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)

	v.SetDefault("monitor.config_file", cfg.Monitor.ConfigFile)
	v.SetDefault("monitor.default_interval", cfg.Monitor.DefaultInterval)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
}

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Browser struct {
		Headless  bool   `yaml:"headless"`
		UserAgent string `yaml:"user_agent"`
		Viewport  struct {
			Width  int `yaml:"width"`
			Height int `yaml:"height"`
		} `yaml:"viewport"`
		Locale   string `yaml:"locale"`
		Timezone string `yaml:"timezone"`
		Proxy    struct {
			Server   string `yaml:"server"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"proxy"`
	} `yaml:"browser"`
	Automation struct {
		NavTimeoutSec     int    `yaml:"nav_timeout_sec"`
		FieldTimeoutMs    int    `yaml:"field_timeout_ms"`
		MaxPhotoKB        int    `yaml:"max_photo_kb"`
		ScreenshotDir     string `yaml:"screenshot_dir"`
		ClickSubmit       bool   `yaml:"click_submit"`
		BlockHeavyAssets  bool   `yaml:"block_heavy_assets"`
		MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
		MinDelayMs        int    `yaml:"min_delay_ms"`
		MaxDelayMs        int    `yaml:"max_delay_ms"`
	} `yaml:"automation"`
	Resolver struct {
		ProbeTimeoutSec int `yaml:"probe_timeout_sec"`
		MinContentBytes int `yaml:"min_content_bytes"`
	} `yaml:"resolver"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional
	cfg := defaultConfig()
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.Browser.Headless = true
	cfg.Browser.Viewport.Width = 1920
	cfg.Browser.Viewport.Height = 1080
	cfg.Browser.Locale = "en-GB"
	cfg.Browser.Timezone = "Europe/London"
	cfg.Automation.NavTimeoutSec = 60
	cfg.Automation.FieldTimeoutMs = 3000
	cfg.Automation.MaxPhotoKB = 300
	cfg.Automation.ScreenshotDir = "screenshots"
	cfg.Automation.BlockHeavyAssets = true
	cfg.Automation.MaxConcurrentJobs = 4
	cfg.Automation.MinDelayMs = 120
	cfg.Automation.MaxDelayMs = 900
	cfg.Resolver.ProbeTimeoutSec = 8
	cfg.Resolver.MinContentBytes = 1000
	cfg.Database.Path = "agencybot.db"
	cfg.Logging.Level = "info"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENCYBOT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AGENCYBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGENCYBOT_HEADLESS"); v == "0" || v == "false" {
		cfg.Browser.Headless = false
	}
	// Proxy credentials come from the environment, never from the config file.
	if v := os.Getenv("PROXY_SERVER"); v != "" {
		cfg.Browser.Proxy.Server = v
	}
	if v := os.Getenv("PROXY_USER"); v != "" {
		cfg.Browser.Proxy.Username = v
	}
	if v := os.Getenv("PROXY_PASS"); v != "" {
		cfg.Browser.Proxy.Password = v
	}
	if v := os.Getenv("AGENCYBOT_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if cfg.Automation.NavTimeoutSec <= 0 {
		return errors.New("automation.nav_timeout_sec must be > 0")
	}
	if cfg.Automation.FieldTimeoutMs <= 0 {
		return errors.New("automation.field_timeout_ms must be > 0")
	}
	if cfg.Automation.MaxPhotoKB <= 0 {
		return errors.New("automation.max_photo_kb must be > 0")
	}
	if cfg.Automation.MaxConcurrentJobs <= 0 {
		return errors.New("automation.max_concurrent_jobs must be > 0")
	}
	if cfg.Resolver.ProbeTimeoutSec <= 0 {
		return errors.New("resolver.probe_timeout_sec must be > 0")
	}
	if (cfg.Browser.Proxy.Username == "") != (cfg.Browser.Proxy.Password == "") {
		return errors.New("proxy username and password must be set together")
	}
	return nil
}

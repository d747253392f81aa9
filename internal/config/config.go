package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Platform  PlatformConfig  `yaml:"platform"`
	Sync      SyncConfig      `yaml:"sync"`
	Widget    WidgetConfig    `yaml:"widget"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// APIConfig contains admin API configuration.
type APIConfig struct {
	Auth      AuthConfig      `yaml:"auth"`
	Nonce     NonceConfig     `yaml:"nonce"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig contains admin authentication configuration.
type AuthConfig struct {
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// NonceConfig contains per-action nonce token configuration.
type NonceConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// PlatformConfig contains the remote chatbot platform configuration.
type PlatformConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout applies to regular API calls; RefreshTimeout to browser-driven
	// refresh/list calls that must answer quickly.
	Timeout        time.Duration `yaml:"timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	UTLS           bool          `yaml:"utls"`
}

// SyncConfig contains content sync configuration.
type SyncConfig struct {
	PageSize     int      `yaml:"page_size"`
	AutoSync     bool     `yaml:"auto_sync"`
	ContentTypes []string `yaml:"content_types"`
}

// WidgetConfig contains front-end widget configuration.
type WidgetConfig struct {
	ScriptURL string `yaml:"script_url"`
}

// TelegramConfig contains telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// RetentionConfig contains database retention configuration.
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 0 and 65535, got %d", c.Server.HTTPPort)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	parsed, err := url.Parse(c.Platform.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("platform.base_url must be an absolute URL, got %q", c.Platform.BaseURL)
	}
	if c.Platform.Timeout <= 0 {
		return fmt.Errorf("platform.timeout must be positive")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}
	return nil
}

// Default returns the configuration defaults applied before parsing.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			HTTPPort:        8411,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		API: APIConfig{
			Nonce: NonceConfig{
				TTL: 10 * time.Minute,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				Burst:             60,
			},
		},
		Platform: PlatformConfig{
			BaseURL:        "https://chatmaxima.com/api/v2/",
			Timeout:        30 * time.Second,
			RefreshTimeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			PageSize:     10,
			ContentTypes: []string{"post", "page"},
		},
		Widget: WidgetConfig{
			ScriptURL: "https://app.chatmaxima.com/widget/chatlink-widget.js",
		},
		Retention: RetentionConfig{
			Days: 30,
		},
	}
}

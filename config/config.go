package config

import (
	"time"
)

// DefaultUserAgent is sent on page loads and image downloads
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36"

// Browser modes
const (
	ModeRod    = "rod"
	ModeStatic = "static"
)

// Config is the complete bot configuration
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Scrape   ScrapeConfig   `mapstructure:"scrape" yaml:"scrape"`
	Filter   FilterConfig   `mapstructure:"filter" yaml:"filter"`
	Images   ImagesConfig   `mapstructure:"images" yaml:"images"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// TelegramConfig configures the chat client and its commands
type TelegramConfig struct {
	Token         string  `mapstructure:"token" yaml:"token"`
	OffersCommand string  `mapstructure:"offers_command" yaml:"offers_command"`
	DrawCommand   string  `mapstructure:"draw_command" yaml:"draw_command"`
	AllowedChats  []int64 `mapstructure:"allowed_chats" yaml:"allowed_chats"` // empty allows every chat
	PollTimeout   int     `mapstructure:"poll_timeout" yaml:"poll_timeout"`   // seconds
}

// BrowserConfig selects and configures the page session
type BrowserConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode"`
	Headless    bool   `mapstructure:"headless" yaml:"headless"`
	Bin         string `mapstructure:"bin" yaml:"bin"`
	Stealth     bool   `mapstructure:"stealth" yaml:"stealth"`
	NoSandbox   bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
}

// ScrapeConfig bounds page loads
type ScrapeConfig struct {
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	Sites             []string      `mapstructure:"sites" yaml:"sites"` // empty scrapes every registered site
}

// FilterConfig limits what is delivered
type FilterConfig struct {
	MaxOffersPerSite int `mapstructure:"max_offers_per_site" yaml:"max_offers_per_site"`
}

// ImagesConfig configures product image downloads
type ImagesConfig struct {
	FallbackURL string        `mapstructure:"fallback_url" yaml:"fallback_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 is unbounded
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig configures the root logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			OffersCommand: "ofertas",
			DrawCommand:   "sorteio",
			AllowedChats:  []int64{},
			PollTimeout:   60,
		},
		Browser: BrowserConfig{
			Mode:      ModeRod,
			Headless:  true,
			Stealth:   true,
			NoSandbox: true,
		},
		Scrape: ScrapeConfig{
			UserAgent:         DefaultUserAgent,
			NavigationTimeout: 60 * time.Second,
			SelectorTimeout:   30 * time.Second,
			Sites:             []string{},
		},
		Filter: FilterConfig{
			MaxOffersPerSite: 0,
		},
		Images: ImagesConfig{
			FallbackURL: "https://thumbs.dreamstime.com/b/simple-adorable-orange-tabby-cat-sleeping-outlined-216146128.jpg",
			Timeout:     0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

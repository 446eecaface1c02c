package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. An empty path searches offerbot.yaml
// in the working directory and ./configs.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("OFFERBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("offerbot")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("telegram.token", cfg.Telegram.Token)
	v.SetDefault("telegram.offers_command", cfg.Telegram.OffersCommand)
	v.SetDefault("telegram.draw_command", cfg.Telegram.DrawCommand)
	v.SetDefault("telegram.allowed_chats", cfg.Telegram.AllowedChats)
	v.SetDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout)

	v.SetDefault("browser.mode", cfg.Browser.Mode)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)

	v.SetDefault("scrape.user_agent", cfg.Scrape.UserAgent)
	v.SetDefault("scrape.navigation_timeout", cfg.Scrape.NavigationTimeout)
	v.SetDefault("scrape.selector_timeout", cfg.Scrape.SelectorTimeout)
	v.SetDefault("scrape.sites", cfg.Scrape.Sites)

	v.SetDefault("filter.max_offers_per_site", cfg.Filter.MaxOffersPerSite)

	v.SetDefault("images.fallback_url", cfg.Images.FallbackURL)
	v.SetDefault("images.timeout", cfg.Images.Timeout)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

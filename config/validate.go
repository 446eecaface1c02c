package config

import (
	"fmt"
	"net/url"
	"strings"

	"offerbot/sites"
)

// Validate checks the configuration for invalid values
func Validate(cfg *Config) error {
	if cfg.Browser.Mode != ModeRod && cfg.Browser.Mode != ModeStatic {
		return fmt.Errorf("browser.mode must be %q or %q, got %q", ModeRod, ModeStatic, cfg.Browser.Mode)
	}

	if cfg.Scrape.NavigationTimeout <= 0 {
		return fmt.Errorf("scrape.navigation_timeout must be > 0")
	}
	if cfg.Scrape.SelectorTimeout <= 0 {
		return fmt.Errorf("scrape.selector_timeout must be > 0")
	}
	if strings.TrimSpace(cfg.Scrape.UserAgent) == "" {
		return fmt.Errorf("scrape.user_agent must not be empty")
	}
	if _, err := sites.Select(cfg.Scrape.Sites); err != nil {
		return fmt.Errorf("scrape.sites: %w", err)
	}

	if cfg.Filter.MaxOffersPerSite < 0 {
		return fmt.Errorf("filter.max_offers_per_site must be >= 0, got %d", cfg.Filter.MaxOffersPerSite)
	}

	if cfg.Images.Timeout < 0 {
		return fmt.Errorf("images.timeout must be >= 0")
	}
	if err := validateHTTPURL(cfg.Images.FallbackURL); err != nil {
		return fmt.Errorf("images.fallback_url: %w", err)
	}

	if cfg.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout must be >= 0, got %d", cfg.Telegram.PollTimeout)
	}
	for name, cmd := range map[string]string{
		"telegram.offers_command": cfg.Telegram.OffersCommand,
		"telegram.draw_command":   cfg.Telegram.DrawCommand,
	} {
		if cmd == "" || strings.ContainsAny(cmd, " /") {
			return fmt.Errorf("%s must be a bare command name, got %q", name, cmd)
		}
	}
	if cfg.Telegram.OffersCommand == cfg.Telegram.DrawCommand {
		return fmt.Errorf("telegram.offers_command and telegram.draw_command must differ")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			return fmt.Errorf("metrics.addr must be set when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
		}
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

// RequireToken checks that a bot token is configured
func RequireToken(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not set (OFFERBOT_TELEGRAM_TOKEN or TELEGRAM_TOKEN)")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
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

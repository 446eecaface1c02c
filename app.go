package main

import (
	"context"
	"fmt"
	"os"

	"offerbot/config"
	"offerbot/fetcher"
	"offerbot/filter"
	"offerbot/metrics"
	"offerbot/parser"
	"offerbot/scraper"
	"offerbot/sites"

	"github.com/sirupsen/logrus"
)

// loadRuntime loads and validates the configuration and builds the root logger
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildScraper wires the page session, extractor and loop for the configured sites
func buildScraper(cfg *config.Config, m *metrics.Metrics, logger logrus.FieldLogger) (*scraper.Scraper, []sites.Site, error) {
	if err := sites.Validate(sites.Registry()); err != nil {
		return nil, nil, fmt.Errorf("site registry: %w", err)
	}
	list, err := sites.Select(cfg.Scrape.Sites)
	if err != nil {
		return nil, nil, err
	}

	extractor := parser.NewExtractor(filter.NewFilter(cfg.Filter.MaxOffersPerSite), cfg.Scrape.SelectorTimeout, logger)
	return scraper.New(newOpener(cfg, logger), extractor, cfg.Scrape.NavigationTimeout, m, logger), list, nil
}

func newOpener(cfg *config.Config, logger logrus.FieldLogger) scraper.Opener {
	if cfg.Browser.Mode == config.ModeStatic {
		return func(ctx context.Context) (scraper.Session, error) {
			return fetcher.NewCollySession(cfg.Scrape.UserAgent, logger), nil
		}
	}

	return scraper.NewRodOpener(scraper.RodOptions{
		Headless:    cfg.Browser.Headless,
		Bin:         cfg.Browser.Bin,
		Stealth:     cfg.Browser.Stealth,
		NoSandbox:   cfg.Browser.NoSandbox,
		UserDataDir: cfg.Browser.UserDataDir,
		UserAgent:   cfg.Scrape.UserAgent,
	}, logger)
}

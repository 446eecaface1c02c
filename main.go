package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offerbot/bot"
	"offerbot/config"
	"offerbot/fetcher"
	"offerbot/metrics"
	"offerbot/models"
	"offerbot/presenter"
	"offerbot/sites"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "offerbot",
		Short: "Telegram bot that posts the daily offers of Brazilian hardware stores",
		Long: `offerbot scrapes the offer pages of KaBuM!, Pichau and Terabyteshop on demand
and posts every product as a photo card in the chat that asked for it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: offerbot.yaml in . or ./configs)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(sitesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := config.RequireToken(cfg); err != nil {
		return err
	}

	m := metrics.New()
	metricsServer := startMetricsServer(cfg.Metrics, m, logger)

	scr, list, err := buildScraper(cfg, m, logger)
	if err != nil {
		return err
	}

	if err := tgbotapi.SetLogger(logger.WithField("component", "telegram")); err != nil {
		return fmt.Errorf("failed to set telegram logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	logger.WithField("username", api.Self.UserName).Info("authorized on telegram")

	images := fetcher.NewImageFetcher(cfg.Scrape.UserAgent, cfg.Images.Timeout)
	p := presenter.New(images, cfg.Images.FallbackURL, m, logger)
	handler := bot.NewHandler(api, scr, p, bot.HandlerConfig{
		OffersCommand: cfg.Telegram.OffersCommand,
		DrawCommand:   cfg.Telegram.DrawCommand,
		AllowedChats:  cfg.Telegram.AllowedChats,
		Sites:         list,
	}, m, logger)

	svc := bot.NewService(api, handler, cfg.Telegram.PollTimeout, logger)
	svc.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.WithField("signal", s.String()).Info("shutting down")

	svc.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("metrics server shutdown failed")
		}
	}
	return nil
}

func scrapeCmd() *cobra.Command {
	var (
		format     string
		siteIDs    []string
		browser    string
		maxPerSite int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the offer pages once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sites") {
				cfg.Scrape.Sites = siteIDs
			}
			if cmd.Flags().Changed("browser") {
				cfg.Browser.Mode = browser
			}
			if cmd.Flags().Changed("max-per-site") {
				cfg.Filter.MaxOffersPerSite = maxPerSite
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			scr, list, err := buildScraper(cfg, nil, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run, err := scr.Run(ctx, list)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"sites":  len(run),
				"offers": run.Total(),
			}).Info("scrape finished")

			return writeRun(cmd.OutOrStdout(), run, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, yaml")
	cmd.Flags().StringSliceVar(&siteIDs, "sites", nil, "comma-separated site ids to scrape (default: all)")
	cmd.Flags().StringVar(&browser, "browser", "", "page session: rod or static")
	cmd.Flags().IntVar(&maxPerSite, "max-per-site", 0, "maximum offers per site (0 = unlimited)")

	return cmd
}

func writeRun(w io.Writer, run models.ScrapeRun, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(run)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(run)
	default:
		return fmt.Errorf("unknown format %q (valid: json, yaml)", format)
	}
}

func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the registered sites and their selectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, site := range sites.Registry() {
				schema, err := sites.SchemaFor(site.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n  url:   %s\n  card:  %s\n  image: %s\n  name:  %s\n  price: %s\n  link:  %s\n  base:  %q\n",
					site.ID, site.URL,
					schema.Selectors.Card, schema.Selectors.Image, schema.Selectors.Name,
					schema.Selectors.Price, schema.Selectors.Link, schema.BaseURL)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "offerbot %s\n", version)
		},
	}
}

func startMetricsServer(cfg config.MetricsConfig, m *metrics.Metrics, logger logrus.FieldLogger) *http.Server {
	if !cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, m.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "path": cfg.Path}).Info("metrics server enabled")
	return srv
}

package scraper

import (
	"context"
	"fmt"
	"time"

	"offerbot/metrics"
	"offerbot/models"
	"offerbot/parser"
	"offerbot/sites"

	"github.com/sirupsen/logrus"
)

// DefaultNavigationTimeout bounds each page load
const DefaultNavigationTimeout = 60 * time.Second

// Session is one browsing context reused for every site of a run
type Session interface {
	parser.Page
	// Navigate loads url and returns once the DOM content is loaded
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Close() error
}

// Opener acquires a fresh Session
type Opener func(ctx context.Context) (Session, error)

// Scraper walks the registered sites with a single session
type Scraper struct {
	open       Opener
	extractor  *parser.Extractor
	navTimeout time.Duration
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

// New creates a Scraper. m may be nil.
func New(open Opener, extractor *parser.Extractor, navTimeout time.Duration, m *metrics.Metrics, logger logrus.FieldLogger) *Scraper {
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scraper{
		open:       open,
		extractor:  extractor,
		navTimeout: navTimeout,
		metrics:    m,
		logger:     logger.WithField("component", "scraper"),
	}
}

// Run scrapes each site in order. A failing site is logged and skipped; only
// failing to open the session aborts the run. The session is closed before
// Run returns.
func (s *Scraper) Run(ctx context.Context, list []sites.Site) (models.ScrapeRun, error) {
	session, err := s.open(ctx)
	if err != nil {
		s.metrics.IncRun("fatal")
		return nil, &models.FatalRunError{Stage: "open browser session", Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close browser session")
		}
	}()

	run := models.ScrapeRun{}
	for _, site := range list {
		if err := ctx.Err(); err != nil {
			s.metrics.IncRun("cancelled")
			return run, err
		}

		log := s.logger.WithFields(logrus.Fields{
			"site": site.Name,
			"url":  site.URL,
		})

		start := time.Now()
		offers, err := s.scrapeSite(ctx, session, site)
		if err != nil {
			s.metrics.ObserveSite(site.Name, metrics.Outcome(err), 0)
			log.WithError(err).Error("failed to scrape site")
			continue
		}
		if len(offers) == 0 {
			s.metrics.ObserveSite(site.Name, "empty", 0)
			log.Info("no offers found")
			continue
		}

		s.metrics.ObserveSite(site.Name, "ok", len(offers))
		log.WithFields(logrus.Fields{
			"offers":   len(offers),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("site scraped")

		run = append(run, models.SiteResult{Site: site.Name, Offers: offers})
	}

	s.metrics.IncRun("ok")
	return run, nil
}

func (s *Scraper) scrapeSite(ctx context.Context, session Session, site sites.Site) (offers []models.Offer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scraping %s: %v", site.Name, r)
		}
	}()

	schema, err := sites.SchemaFor(site.ID)
	if err != nil {
		return nil, err
	}

	if err := session.Navigate(ctx, site.URL, s.navTimeout); err != nil {
		return nil, &models.NavigationError{Site: site.Name, URL: site.URL, Err: err}
	}

	return s.extractor.Extract(ctx, session, schema.Selectors, schema.BaseURL)
}

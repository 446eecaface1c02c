// Package metrics exposes Prometheus collectors for scrape runs and deliveries.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"offerbot/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the bot's collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RunsTotal       *prometheus.CounterVec
	SiteScrapes     *prometheus.CounterVec
	OffersTotal     *prometheus.CounterVec
	ImageFallbacks  *prometheus.CounterVec
	MessagesSent    *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offerbot_scrape_runs_total",
			Help: "Scrape runs by result.",
		},
		[]string{"result"},
	)
	siteScrapes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offerbot_site_scrapes_total",
			Help: "Per-site scrape attempts by outcome.",
		},
		[]string{"site", "outcome"},
	)
	offers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offerbot_offers_extracted_total",
			Help: "Complete offers extracted per site.",
		},
		[]string{"site"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offerbot_image_fallbacks_total",
			Help: "Product cards sent with the placeholder image, by reason.",
		},
		[]string{"reason"},
	)
	messages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offerbot_messages_sent_total",
			Help: "Chat messages sent by kind.",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offerbot_command_duration_seconds",
			Help:    "Time spent handling chat commands.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"command"},
	)

	registry.MustRegister(runs, siteScrapes, offers, fallbacks, messages, duration)

	return &Metrics{
		Registry:        registry,
		RunsTotal:       runs,
		SiteScrapes:     siteScrapes,
		OffersTotal:     offers,
		ImageFallbacks:  fallbacks,
		MessagesSent:    messages,
		CommandDuration: duration,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncRun counts a finished scrape run.
func (m *Metrics) IncRun(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}

// ObserveSite records the outcome of one site and the offers it produced.
func (m *Metrics) ObserveSite(site, outcome string, offers int) {
	if m == nil {
		return
	}
	m.SiteScrapes.WithLabelValues(site, outcome).Inc()
	if offers > 0 {
		m.OffersTotal.WithLabelValues(site).Add(float64(offers))
	}
}

// IncImageFallback counts a card delivered with the placeholder image.
func (m *Metrics) IncImageFallback(reason string) {
	if m == nil {
		return
	}
	m.ImageFallbacks.WithLabelValues(reason).Inc()
}

// IncMessage counts a sent chat message.
func (m *Metrics) IncMessage(kind string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(kind).Inc()
}

// ObserveCommand records how long a command took.
func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// Outcome maps a per-site or per-image error to a label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var (
		selErr   *models.SelectorTimeoutError
		navErr   *models.NavigationError
		imgErr   *models.NotAnImageError
		netErr   *models.NetworkError
		fatalErr *models.FatalRunError
	)
	switch {
	case errors.Is(err, models.ErrUnknownSite):
		return "unknown_site"
	case errors.As(err, &selErr):
		return "selector_timeout"
	case errors.As(err, &navErr):
		return "navigation"
	case errors.As(err, &imgErr):
		return "not_image"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &fatalErr):
		return "fatal"
	default:
		return "error"
	}
}

package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"offerbot/filter"
	"offerbot/models"
	"offerbot/sites"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// DefaultSelectorTimeout bounds the wait for the first product card
const DefaultSelectorTimeout = 30 * time.Second

// Page is a rendered document that can be waited on and snapshotted
type Page interface {
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
}

// Extractor reads product cards out of a rendered page
type Extractor struct {
	filter          *filter.Filter
	selectorTimeout time.Duration
	logger          logrus.FieldLogger
}

// NewExtractor creates an Extractor. A nil filter keeps every complete offer.
func NewExtractor(f *filter.Filter, selectorTimeout time.Duration, logger logrus.FieldLogger) *Extractor {
	if f == nil {
		f = filter.NewFilter(0)
	}
	if selectorTimeout <= 0 {
		selectorTimeout = DefaultSelectorTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{
		filter:          f,
		selectorTimeout: selectorTimeout,
		logger:          logger.WithField("component", "extractor"),
	}
}

// Extract waits for the card selector, snapshots the page once and returns the
// complete offers in document order.
func (e *Extractor) Extract(ctx context.Context, page Page, sel sites.Selectors, baseURL string) ([]models.Offer, error) {
	if err := page.WaitSelector(ctx, sel.Card, e.selectorTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &models.SelectorTimeoutError{Selector: sel.Card, Err: err}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	candidates, err := ParseCards(html, sel, baseURL)
	if err != nil {
		return nil, err
	}

	offers := e.filter.ApplyFilters(candidates)
	e.logger.WithFields(logrus.Fields{
		"cards":  len(candidates),
		"offers": len(offers),
	}).Debug("extracted offers")

	return offers, nil
}

// ExtractOffers parses a DOM snapshot and returns only the complete offers
func ExtractOffers(html string, sel sites.Selectors, baseURL string) ([]models.Offer, error) {
	candidates, err := ParseCards(html, sel, baseURL)
	if err != nil {
		return nil, err
	}
	return filter.NewFilter(0).ApplyFilters(candidates), nil
}

// ParseCards returns one record per card element. Fields that could not be
// found hold their placeholder text.
func ParseCards(html string, sel sites.Selectors, baseURL string) ([]models.Offer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var offers []models.Offer
	doc.Find(sel.Card).Each(func(i int, card *goquery.Selection) {
		offers = append(offers, extractOffer(card, sel, baseURL))
	})

	return offers, nil
}

func extractOffer(card *goquery.Selection, sel sites.Selectors, baseURL string) models.Offer {
	offer := models.Offer{
		Image: models.ImageNotFound,
		Name:  models.NameNotFound,
		Price: models.PriceNotFound,
		URL:   models.URLNotFound,
	}

	if img := card.Find(sel.Image).First(); img.Length() > 0 {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
		if src != "" {
			offer.Image = src
		}
	}

	if name, ok := textOf(card, sel.Name); ok {
		offer.Name = name
	}
	if price, ok := textOf(card, sel.Price); ok {
		offer.Price = price
	}

	if link := card.Find(sel.Link).First(); link.Length() > 0 {
		if href := strings.TrimSpace(link.AttrOr("href", "")); href != "" {
			offer.URL = baseURL + href
		}
	}

	return offer
}

// textOf returns the trimmed text of the first match; empty text counts as missing
func textOf(s *goquery.Selection, selector string) (string, bool) {
	el := s.Find(selector).First()
	if el.Length() == 0 {
		return "", false
	}
	text := strings.Join(strings.Fields(el.Text()), " ")
	return text, text != ""
}

// Package presenter turns a scrape run into chat messages.
package presenter

import (
	"context"

	"offerbot/metrics"
	"offerbot/models"

	"github.com/sirupsen/logrus"
)

// Notices sent around the product cards
const (
	NoOffersNotice  = "❌ Nenhuma oferta encontrada."
	CompletedNotice = "✅ Scraping concluído!"
)

// DefaultFallbackImageURL is shown when a product image cannot be attached
const DefaultFallbackImageURL = "https://thumbs.dreamstime.com/b/simple-adorable-orange-tabby-cat-sleeping-outlined-216146128.jpg"

// Card is one product message
type Card struct {
	Title       string
	Description string
	URL         string
	Footer      string
}

// Messenger delivers cards and notices to one conversation
type Messenger interface {
	SendCardWithImage(ctx context.Context, card Card, image []byte) error
	SendCardWithImageURL(ctx context.Context, card Card, imageURL string) error
	Notify(ctx context.Context, text string) error
}

// ImageSource downloads product images
type ImageSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Presenter sends one card per offer, in site then product order
type Presenter struct {
	images      ImageSource
	fallbackURL string
	metrics     *metrics.Metrics
	logger      logrus.FieldLogger
}

// New creates a Presenter. m may be nil.
func New(images ImageSource, fallbackURL string, m *metrics.Metrics, logger logrus.FieldLogger) *Presenter {
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackImageURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Presenter{
		images:      images,
		fallbackURL: fallbackURL,
		metrics:     m,
		logger:      logger.WithField("component", "presenter"),
	}
}

// CardFor builds the card of an offer found on site
func CardFor(site string, offer models.Offer) Card {
	return Card{
		Title:       offer.Name,
		Description: offer.Price,
		URL:         offer.URL,
		Footer:      site,
	}
}

// Present delivers run through m. An empty run yields a single no-offers notice.
// A card that cannot be sent even with the placeholder image aborts delivery
// with a *models.FatalRunError.
func (p *Presenter) Present(ctx context.Context, m Messenger, run models.ScrapeRun) error {
	if run.Total() == 0 {
		if err := p.notify(ctx, m, NoOffersNotice); err != nil {
			return &models.FatalRunError{Stage: "send notice", Err: err}
		}
		return nil
	}

	for _, res := range run {
		for _, offer := range res.Offers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.deliver(ctx, m, res.Site, offer); err != nil {
				return &models.FatalRunError{Stage: "send offer", Err: err}
			}
		}
	}

	if err := p.notify(ctx, m, CompletedNotice); err != nil {
		return &models.FatalRunError{Stage: "send notice", Err: err}
	}
	return nil
}

func (p *Presenter) deliver(ctx context.Context, m Messenger, site string, offer models.Offer) error {
	card := CardFor(site, offer)
	log := p.logger.WithFields(logrus.Fields{
		"site":  site,
		"url":   offer.URL,
		"image": offer.Image,
	})

	image, err := p.images.Fetch(ctx, offer.Image)
	if err == nil {
		if err = m.SendCardWithImage(ctx, card, image); err == nil {
			p.metrics.IncMessage("photo")
			return nil
		}
		log.WithError(err).Warn("failed to send card with image, retrying with placeholder")
		p.metrics.IncImageFallback("send")
	} else {
		log.WithError(err).Warn("failed to download image, using placeholder")
		p.metrics.IncImageFallback(metrics.Outcome(err))
	}

	if err := m.SendCardWithImageURL(ctx, card, p.fallbackURL); err != nil {
		log.WithError(err).Error("failed to send card")
		return err
	}
	p.metrics.IncMessage("fallback")
	return nil
}

func (p *Presenter) notify(ctx context.Context, m Messenger, text string) error {
	if err := m.Notify(ctx, text); err != nil {
		p.logger.WithError(err).Error("failed to send notice")
		return err
	}
	p.metrics.IncMessage("notice")
	return nil
}

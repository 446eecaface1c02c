// Package sites holds the fixed list of storefronts scraped by the offers
// command and the selector schema used to read each one.
package sites

import (
	"fmt"

	"offerbot/models"
)

// ID identifies a registered storefront
type ID string

const (
	Kabum    ID = "kabum"
	Pichau   ID = "pichau"
	Terabyte ID = "terabyteshop"
)

// Selectors locate the product data inside a rendered page. Image, Name,
// Price and Link are evaluated relative to each Card element.
type Selectors struct {
	Card  string `json:"card" yaml:"card"`
	Image string `json:"image" yaml:"image"`
	Name  string `json:"name" yaml:"name"`
	Price string `json:"price" yaml:"price"`
	Link  string `json:"link" yaml:"link"`
}

// Schema is the extraction recipe for one site
type Schema struct {
	Selectors Selectors `json:"selectors" yaml:"selectors"`
	// BaseURL is prefixed to relative product links. Empty when the site
	// already renders absolute links.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// Site is a registry entry
type Site struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

var registry = []Site{
	{ID: Kabum, Name: "kabum", URL: "https://www.kabum.com.br/ofertas/ofertadodia"},
	{ID: Pichau, Name: "pichau", URL: "https://www.pichau.com.br/promocao"},
	{ID: Terabyte, Name: "terabyteshop", URL: "https://www.terabyteshop.com.br/promocoes"},
}

// Registry returns the registered sites in scrape order
func Registry() []Site {
	out := make([]Site, len(registry))
	copy(out, registry)
	return out
}

// SchemaFor returns the selector schema of a site. Identifiers outside the
// registry yield models.ErrUnknownSite.
func SchemaFor(id ID) (Schema, error) {
	switch id {
	case Kabum:
		return Schema{
			Selectors: Selectors{
				Card:  ".productCard",
				Image: ".imageCard",
				Name:  ".nameCard",
				Price: ".priceCard",
				Link:  ".productLink",
			},
			BaseURL: "https://www.kabum.com.br",
		}, nil
	case Pichau:
		return Schema{
			Selectors: Selectors{
				Card:  ".mui-p3mq1s",
				Image: ".mui-rfxowm-media",
				Name:  ".mui-1jecgbd-product_info_title-noMarginBottom",
				Price: ".mui-1q2ojdg-price_vista",
				Link:  `[data-cy="list-product"]`,
			},
			BaseURL: "https://www.pichau.com.br",
		}, nil
	case Terabyte:
		return Schema{
			Selectors: Selectors{
				Card:  ".product-item__grid",
				Image: ".image-thumbnail",
				Name:  ".product-item__name h2",
				Price: ".product-item__new-price span",
				Link:  ".product-item__name",
			},
			BaseURL: "",
		}, nil
	}
	return Schema{}, fmt.Errorf("%w: %q", models.ErrUnknownSite, id)
}

// Validate checks that every site has a schema with all five selectors set
func Validate(list []Site) error {
	seen := make(map[ID]bool, len(list))
	for _, s := range list {
		if seen[s.ID] {
			return fmt.Errorf("site %q registered twice", s.ID)
		}
		seen[s.ID] = true

		if s.URL == "" {
			return fmt.Errorf("site %q has no url", s.ID)
		}
		schema, err := SchemaFor(s.ID)
		if err != nil {
			return err
		}
		sel := schema.Selectors
		if sel.Card == "" || sel.Image == "" || sel.Name == "" || sel.Price == "" || sel.Link == "" {
			return fmt.Errorf("site %q has an incomplete selector schema", s.ID)
		}
	}
	return nil
}

// Select returns the registry entries named in ids, keeping registry order.
// An empty ids selects every site.
func Select(ids []string) ([]Site, error) {
	if len(ids) == 0 {
		return Registry(), nil
	}

	wanted := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if _, err := SchemaFor(ID(id)); err != nil {
			return nil, err
		}
		wanted[ID(id)] = true
	}

	var out []Site
	for _, s := range registry {
		if wanted[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

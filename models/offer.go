package models

// Placeholders substituted for card fields that could not be located.
// An Offer carrying any of them is incomplete and must never leave the extractor.
const (
	ImageNotFound = "Imagem não encontrada"
	NameNotFound  = "Nome não encontrado"
	PriceNotFound = "Preço não encontrado"
	URLNotFound   = "URL não encontrada"
)

// Offer represents one product listing extracted from a storefront card
type Offer struct {
	Image string `json:"image" yaml:"image"`
	Name  string `json:"name" yaml:"name"`
	Price string `json:"price" yaml:"price"` // display text, currency symbol included
	URL   string `json:"url" yaml:"url"`
}

// IsComplete reports whether every field was found on the card
func (o Offer) IsComplete() bool {
	return o.Image != ImageNotFound &&
		o.Name != NameNotFound &&
		o.Price != PriceNotFound &&
		o.URL != URLNotFound
}

// SiteResult holds the offers extracted from one site, in DOM order
type SiteResult struct {
	Site   string  `json:"site" yaml:"site"`
	Offers []Offer `json:"offers" yaml:"offers"`
}

// ScrapeRun is the outcome of one pass over the registered sites, in registry order.
// It lives only for the duration of a single command.
type ScrapeRun []SiteResult

// Total returns the number of offers across all sites
func (r ScrapeRun) Total() int {
	n := 0
	for _, res := range r {
		n += len(res.Offers)
	}
	return n
}

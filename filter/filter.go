package filter

import (
	"offerbot/models"
)

// Filter decides which extracted offers are delivered
type Filter struct {
	maxPerSite int
}

// NewFilter creates a Filter. maxPerSite caps the offers kept per site; 0 keeps all of them.
func NewFilter(maxPerSite int) *Filter {
	if maxPerSite < 0 {
		maxPerSite = 0
	}
	return &Filter{
		maxPerSite: maxPerSite,
	}
}

// ApplyFilters drops incomplete offers and applies the per-site cap, preserving order
func (f *Filter) ApplyFilters(offers []models.Offer) []models.Offer {
	var filtered []models.Offer

	for _, offer := range offers {
		if f.maxPerSite > 0 && len(filtered) >= f.maxPerSite {
			break
		}
		if f.matchesFilters(offer) {
			filtered = append(filtered, offer)
		}
	}

	return filtered
}

// matchesFilters rejects any offer still carrying a placeholder field
func (f *Filter) matchesFilters(offer models.Offer) bool {
	return offer.IsComplete()
}

package filter

import (
	"testing"

	"offerbot/models"
)

func offer(name string) models.Offer {
	return models.Offer{
		Image: "https://cdn.example.com/" + name + ".jpg",
		Name:  name,
		Price: "R$ 10,00",
		URL:   "https://shop.example.com/" + name,
	}
}

func TestApplyFilters(t *testing.T) {
	noPrice := offer("b")
	noPrice.Price = models.PriceNotFound
	noImage := offer("c")
	noImage.Image = models.ImageNotFound
	noURL := offer("d")
	noURL.URL = models.URLNotFound
	noName := offer("e")
	noName.Name = models.NameNotFound

	input := []models.Offer{offer("a"), noPrice, noImage, noURL, noName, offer("f")}

	tests := []struct {
		name       string
		maxPerSite int
		want       []string
	}{
		{"unlimited", 0, []string{"a", "f"}},
		{"cap of one", 1, []string{"a"}},
		{"cap above count", 10, []string{"a", "f"}},
		{"negative means unlimited", -3, []string{"a", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFilter(tt.maxPerSite).ApplyFilters(input)
			if len(got) != len(tt.want) {
				t.Fatalf("ApplyFilters() kept %d offers, want %d", len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("offer[%d] = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestApplyFiltersCapCountsOnlyKeptOffers(t *testing.T) {
	bad := offer("x")
	bad.Price = models.PriceNotFound

	got := NewFilter(2).ApplyFilters([]models.Offer{bad, bad, offer("a"), bad, offer("b"), offer("c")})
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("ApplyFilters() = %+v, want offers a and b", got)
	}
}

func TestApplyFiltersEmpty(t *testing.T) {
	if got := NewFilter(0).ApplyFilters(nil); len(got) != 0 {
		t.Errorf("ApplyFilters(nil) = %v, want empty", got)
	}
}

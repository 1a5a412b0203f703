package rank

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/model"
)

// Place types shown on the detail card.
const (
	PlaceTypeCDP   = "Census Designated Place"
	PlaceTypeCity  = "City"
	PlaceTypeTown  = "Town"
	PlaceTypePlace = "Place"
)

// Detail is the formatted detail card (map popup) for one place.
type Detail struct {
	ID             string                            `json:"id"`
	Name           string                            `json:"name"`
	Type           string                            `json:"type"`
	Population     string                            `json:"population"`
	Density        string                            `json:"density"`
	Income         string                            `json:"median_income"`
	PovertyRate    string                            `json:"poverty_rate"`
	Rent           string                            `json:"median_rent"`
	HomeValue      string                            `json:"median_home_value"`
	BachelorsPct   string                            `json:"pct_bachelors_or_higher"`
	EducationTotal string                            `json:"education_total"`
	Classes        map[model.Metric]model.ColorClass `json:"classes"`
	Extent         []float64                         `json:"extent,omitempty"`
}

var printer = message.NewPrinter(language.AmericanEnglish)

// PlaceType derives the place type from a designation string.
func PlaceType(designation string) string {
	switch {
	case model.IsCDP(designation):
		return PlaceTypeCDP
	case strings.Contains(designation, "city"):
		return PlaceTypeCity
	case strings.Contains(designation, "town"):
		return PlaceTypeTown
	default:
		return PlaceTypePlace
	}
}

// BuildDetail formats a place for display.
func BuildDetail(p *model.Place) Detail {
	classes := make(map[model.Metric]model.ColorClass, len(model.Metrics))
	for _, m := range model.Metrics {
		classes[m] = classify.Classify(p, m)
	}

	return Detail{
		ID:             p.ID,
		Name:           p.Name,
		Type:           PlaceType(p.Designation),
		Population:     formatNumber(model.FromRaw(p.Population, true)),
		Density:        formatNumber(model.Some(p.Density)) + " people/sq mile",
		Income:         formatCurrency(p.Income),
		PovertyRate:    formatPercent(p.PovertyRate),
		Rent:           formatCurrency(p.Rent),
		HomeValue:      formatCurrency(p.HomeValue),
		BachelorsPct:   formatPercent(p.BachelorsPct),
		EducationTotal: formatNumber(p.EducationTotal),
		Classes:        classes,
		Extent:         p.Extent(),
	}
}

func formatNumber(v model.Optional[int64]) string {
	n, ok := v.Get()
	if !ok {
		return NotAvailable
	}
	return printer.Sprintf("%d", n)
}

func formatCurrency(v model.Optional[float64]) string {
	n, ok := v.Get()
	if !ok {
		return NotAvailable
	}
	if n == math.Trunc(n) {
		return printer.Sprintf("$%.0f", n)
	}
	return printer.Sprintf("$%.2f", n)
}

func formatPercent(v model.Optional[float64]) string {
	n, ok := v.Get()
	if !ok {
		return NotAvailable
	}
	return printer.Sprintf("%.1f%%", n)
}

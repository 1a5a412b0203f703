package aggregate

import (
	"math"

	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/model"
)

// StateColor is the bar color used for statewide averages.
const StateColor = "#3498db"

// Category is one row of the demographics panel.
type Category struct {
	Name     string                  `json:"name"`
	Format   model.Format            `json:"format"`
	Place    float64                 `json:"place"`
	State    float64                 `json:"state"`
	RawPlace model.Optional[float64] `json:"raw_place"`
}

// Comparison pairs a place with the statewide averages.
type Comparison struct {
	PlaceID    string     `json:"place_id"`
	PlaceName  string     `json:"place_name"`
	PlaceColor string     `json:"place_color"`
	StateColor string     `json:"state_color"`
	Categories []Category `json:"categories"`
}

// Compare builds the demographics panel for a place. Missing or negative
// values display as 0; the raw place value is kept alongside.
func Compare(p *model.Place, avg Averages) Comparison {
	rows := []struct {
		name   string
		format model.Format
		place  model.Optional[float64]
		state  float64
	}{
		{"Population Density", model.FormatDensity, model.Some(float64(p.Density)), float64(avg.Density)},
		{"Median Income", model.FormatCurrency, p.Income, float64(avg.Income)},
		{"Median Rent", model.FormatCurrency, p.Rent, float64(avg.Rent)},
		{"Median Home Value", model.FormatCurrency, p.HomeValue, float64(avg.HomeValue)},
		{"Poverty Rate", model.FormatPercent, p.PovertyRate, avg.Poverty},
	}

	cats := make([]Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, Category{
			Name:     r.name,
			Format:   r.format,
			Place:    displayValue(r.place.Or(0)),
			State:    displayValue(r.state),
			RawPlace: r.place,
		})
	}

	return Comparison{
		PlaceID:    p.ID,
		PlaceName:  p.Name,
		PlaceColor: classify.Classify(p, model.MetricPopulation).Color(),
		StateColor: StateColor,
		Categories: cats,
	}
}

func displayValue(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

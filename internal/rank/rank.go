// Package rank builds the ranked bar chart and display strings for places.
package rank

import (
	"fmt"
	"sort"

	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/model"
)

// DefaultTopN is the number of bars shown when no limit is configured.
const DefaultTopN = 15

// Bar is one entry of the ranked chart.
type Bar struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Label []string         `json:"label"`
	Value float64          `json:"value"`
	Text  string           `json:"text"`
	Class model.ColorClass `json:"class"`
	Color string           `json:"color"`
}

// Chart is the payload for the ranked bar chart.
type Chart struct {
	Metric    model.Metric `json:"metric"`
	Title     string       `json:"title"`
	AxisTitle string       `json:"axis_title"`
	Bars      []Bar        `json:"bars"`
}

// Top returns the n places with the highest metric value, highest first.
// CDPs are left out entirely. Ties keep collection order. A non-positive n
// falls back to DefaultTopN.
func Top(places []model.Place, m model.Metric, n int) []Bar {
	if n <= 0 {
		n = DefaultTopN
	}

	ranked := make([]*model.Place, 0, len(places))
	for i := range places {
		if !places[i].CDP {
			ranked = append(ranked, &places[i])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value(m) > ranked[j].Value(m)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	format := model.FormatFor(m)
	bars := make([]Bar, 0, len(ranked))
	for _, p := range ranked {
		class := classify.Classify(p, m)
		v := p.Value(m)
		bars = append(bars, Bar{
			ID:    p.ID,
			Name:  p.Name,
			Label: Label(p.Name),
			Value: v,
			Text:  FormatValue(v, format),
			Class: class,
			Color: class.Color(),
		})
	}
	return bars
}

// BuildChart wraps Top with the chart and axis titles for the metric.
func BuildChart(places []model.Place, m model.Metric, n int) Chart {
	if n <= 0 {
		n = DefaultTopN
	}
	title := fmt.Sprintf("Top %d Cities by Population", n)
	axis := "Population"
	if m != model.MetricPopulation {
		title = fmt.Sprintf("Top %d Cities by Population Density", n)
		axis = "Population Density (per sq mile)"
	}
	return Chart{
		Metric:    m,
		Title:     title,
		AxisTitle: axis,
		Bars:      Top(places, m, n),
	}
}

package classify

import "github.com/sells-group/placemap/internal/model"

// LegendEntry is one row of the categorical legend.
type LegendEntry struct {
	Bucket model.ColorClass `json:"bucket"`
	Label  string           `json:"label"`
	Color  string           `json:"color"`
	Count  int              `json:"count"`
}

// Legend returns the legend rows for a metric in display order, with the
// number of places in each bucket.
func Legend(places []model.Place, m model.Metric) []LegendEntry {
	counts := Counts(places, m)
	t := TableFor(m)
	entries := make([]LegendEntry, 0, len(model.Classes))
	for _, c := range model.Classes {
		entries = append(entries, LegendEntry{
			Bucket: c,
			Label:  t.Label(c),
			Color:  c.Color(),
			Count:  counts[c],
		})
	}
	return entries
}

// Counts returns how many places fall in each class under the metric.
func Counts(places []model.Place, m model.Metric) map[model.ColorClass]int {
	counts := make(map[model.ColorClass]int, len(model.Classes))
	for i := range places {
		counts[Classify(&places[i], m)]++
	}
	return counts
}

// Package classify buckets places into choropleth color classes.
package classify

import (
	"strconv"
	"strings"

	"github.com/sells-group/placemap/internal/model"
)

// Table is the ordered list of five ascending breakpoints for a metric. The
// breakpoints define six half-open intervals [-inf,b1), [b1,b2) ... [b5,+inf),
// one per numeric color class.
type Table struct {
	Metric      model.Metric
	Breakpoints [5]float64
}

// Population thresholds (people).
var PopulationTable = Table{
	Metric:      model.MetricPopulation,
	Breakpoints: [5]float64{5000, 25000, 100000, 300000, 600000},
}

// Density thresholds (people per square mile).
var DensityTable = Table{
	Metric:      model.MetricDensity,
	Breakpoints: [5]float64{100, 500, 1000, 2000, 5000},
}

// TableFor returns the threshold table for a metric. Unknown metrics use the
// density table.
func TableFor(m model.Metric) Table {
	if m == model.MetricPopulation {
		return PopulationTable
	}
	return DensityTable
}

// ClassOf returns the numeric class whose interval contains v.
func (t Table) ClassOf(v float64) model.ColorClass {
	for i, upper := range t.Breakpoints {
		if v < upper {
			return model.NumericClasses[i]
		}
	}
	return model.ClassDarkPurple
}

// Label returns the range label of a class, e.g. "5000-25000" or "600000+".
// The CDP class is labelled "cdp".
func (t Table) Label(c model.ColorClass) string {
	b := t.Breakpoints
	switch {
	case c == model.ClassSpecial:
		return c.String()
	case c == model.ClassVeryLight:
		return "0-" + formatBound(b[0])
	case c == model.ClassDarkPurple:
		return formatBound(b[len(b)-1]) + "+"
	case c > model.ClassVeryLight && c < model.ClassDarkPurple:
		return formatBound(b[c-1]) + "-" + formatBound(b[c])
	default:
		return ""
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Classify returns the color class of a place under a metric. CDPs are
// always ClassSpecial regardless of their numeric value.
func Classify(p *model.Place, m model.Metric) model.ColorClass {
	if p.CDP {
		return model.ClassSpecial
	}
	return TableFor(m).ClassOf(p.Value(m))
}

// ParseBucket resolves a legend bucket reference under a metric. It accepts
// legend ids ("light", "dark-purple", "cdp") and the metric's range labels
// ("5000-25000", "600000+").
func ParseBucket(s string, m model.Metric) (model.ColorClass, bool) {
	if c, ok := model.ParseClass(s); ok {
		return c, true
	}
	s = strings.TrimSpace(s)
	t := TableFor(m)
	for _, c := range model.NumericClasses {
		if t.Label(c) == s {
			return c, true
		}
	}
	return 0, false
}

// Members returns the ids of every place in the bucket under the metric,
// in collection order. The CDP bucket contains every CDP.
func Members(places []model.Place, bucket model.ColorClass, m model.Metric) []string {
	if !bucket.Valid() {
		return nil
	}
	var ids []string
	for i := range places {
		if Classify(&places[i], m) == bucket {
			ids = append(ids, places[i].ID)
		}
	}
	return ids
}

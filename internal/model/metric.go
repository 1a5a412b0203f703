package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Metric selects the attribute and threshold table that drive
// classification and ranking.
type Metric string

const (
	MetricPopulation Metric = "population"
	MetricDensity    Metric = "density"
)

// Metrics lists every supported metric in display order.
var Metrics = []Metric{MetricPopulation, MetricDensity}

// ParseMetric parses a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricPopulation:
		return MetricPopulation, nil
	case MetricDensity:
		return MetricDensity, nil
	default:
		return "", eris.Errorf("model: unknown metric %q", s)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricPopulation || m == MetricDensity
}

// ColorClass is an ordered choropleth class. The six numeric classes are
// ordered from lightest to darkest; ClassSpecial is disjoint and reserved
// for census-designated places.
type ColorClass int

const (
	ClassVeryLight ColorClass = iota
	ClassLight
	ClassMedium
	ClassLightPurple
	ClassMediumPurple
	ClassDarkPurple
	ClassSpecial
)

// NumericClasses lists the six threshold classes in ascending order.
var NumericClasses = []ColorClass{
	ClassVeryLight, ClassLight, ClassMedium,
	ClassLightPurple, ClassMediumPurple, ClassDarkPurple,
}

// Classes lists every class in legend order, CDP last.
var Classes = append(append([]ColorClass{}, NumericClasses...), ClassSpecial)

var classIDs = map[ColorClass]string{
	ClassVeryLight:    "very-light",
	ClassLight:        "light",
	ClassMedium:       "medium",
	ClassLightPurple:  "light-purple",
	ClassMediumPurple: "medium-purple",
	ClassDarkPurple:   "dark-purple",
	ClassSpecial:      "cdp",
}

var classColors = map[ColorClass]string{
	ClassVeryLight:    "#8DF6FC",
	ClassLight:        "#5DE7FC",
	ClassMedium:       "#4AACD5",
	ClassLightPurple:  "#F7BFF7",
	ClassMediumPurple: "#D674FB",
	ClassDarkPurple:   "#A143C8",
	ClassSpecial:      "#808080",
}

// String returns the legend id of the class (e.g. "light-purple", "cdp").
func (c ColorClass) String() string {
	if id, ok := classIDs[c]; ok {
		return id
	}
	return "unknown"
}

// Color returns the palette color for the class.
func (c ColorClass) Color() string {
	return classColors[c]
}

// Valid reports whether c is one of the seven classes.
func (c ColorClass) Valid() bool {
	_, ok := classIDs[c]
	return ok
}

// ParseClass parses a legend id such as "medium" or "cdp".
func ParseClass(s string) (ColorClass, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, id := range classIDs {
		if id == s {
			return c, true
		}
	}
	return 0, false
}

// MarshalText encodes the class as its legend id.
func (c ColorClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, eris.Errorf("model: invalid color class %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a legend id.
func (c *ColorClass) UnmarshalText(text []byte) error {
	parsed, ok := ParseClass(string(text))
	if !ok {
		return eris.Errorf("model: unknown color class %q", string(text))
	}
	*c = parsed
	return nil
}

// Format names how a value is presented on a chart or detail card.
type Format string

const (
	FormatCount    Format = "population"
	FormatDensity  Format = "density"
	FormatCurrency Format = "currency"
	FormatPercent  Format = "percentage"
)

// FormatFor returns the display format of a metric's values.
func FormatFor(m Metric) Format {
	if m == MetricPopulation {
		return FormatCount
	}
	return FormatDensity
}

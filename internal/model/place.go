package model

import (
	"math"
	"strings"

	"github.com/twpayne/go-geom"
)

// SquareMetersPerSquareMile converts TIGER ALAND values to square miles.
const SquareMetersPerSquareMile = 2589988

// cdpMarker identifies census-designated places in a designation string.
const cdpMarker = "CDP"

// Place is one municipal entity: a city, town, or census-designated place.
// Places are immutable once a collection has been loaded.
type Place struct {
	ID             string            `json:"id"`
	GEOID          string            `json:"geoid,omitempty"`
	Name           string            `json:"name"`
	Designation    string            `json:"designation"`
	Population     int64             `json:"population"`
	LandArea       float64           `json:"land_area_sq_m"`
	Density        int64             `json:"density"`
	CDP            bool              `json:"cdp"`
	Income         Optional[float64] `json:"median_income"`
	Rent           Optional[float64] `json:"median_rent"`
	HomeValue      Optional[float64] `json:"median_home_value"`
	PovertyRate    Optional[float64] `json:"poverty_rate"`
	BachelorsPct   Optional[float64] `json:"pct_bachelors_or_higher"`
	EducationTotal Optional[int64]   `json:"education_total"`
	Bounds         *geom.Bounds      `json:"-"`
}

// IsCDP reports whether a designation names a census-designated place.
// The match is a case-sensitive substring test.
func IsCDP(designation string) bool {
	return strings.Contains(designation, cdpMarker)
}

// DeriveDensity returns people per square mile, rounded half-up, or 0 when
// the land area is not positive.
func DeriveDensity(population int64, landAreaSqMeters float64) int64 {
	if landAreaSqMeters <= 0 {
		return 0
	}
	sqMiles := landAreaSqMeters / SquareMetersPerSquareMile
	return int64(RoundHalfUp(float64(population)/sqMiles, 0))
}

// RoundHalfUp rounds x to the given number of decimal places, with halves
// rounded toward positive infinity.
func RoundHalfUp(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	scale := math.Pow(10, float64(places))
	return math.Floor(x*scale+0.5) / scale
}

// Value returns the numeric attribute that drives the metric. Unknown
// metrics read density.
func (p *Place) Value(m Metric) float64 {
	if m == MetricPopulation {
		return float64(p.Population)
	}
	return float64(p.Density)
}

// Extent returns the place bounds as [minX, minY, maxX, maxY], or nil when
// no geometry was loaded.
func (p *Place) Extent() []float64 {
	if p.Bounds == nil || p.Bounds.IsEmpty() {
		return nil
	}
	return []float64{p.Bounds.Min(0), p.Bounds.Min(1), p.Bounds.Max(0), p.Bounds.Max(1)}
}

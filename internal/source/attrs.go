package source

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Attribute names used by the census place layers.
const (
	AttrGEOID          = "GEOID"
	AttrName           = "NAME"
	AttrDesignation    = "NAMELSAD"
	AttrLandArea       = "ALAND"
	AttrPopulation     = "Total_Pop"
	AttrIncome         = "Median_Income"
	AttrRent           = "Median_Rent"
	AttrHomeValue      = "Median_Home_Value"
	AttrPovertyRate    = "Poverty_Rate"
	AttrBachelorsPct   = "Pct_Bachelors_or_Higher"
	AttrEducationTotal = "Educ_Total"
)

// dbfNameLen is the longest field name a dBase header can hold.
const dbfNameLen = 10

// attrGetter returns the raw value of an attribute and whether it was set.
type attrGetter func(name string) (any, bool)

// recordFrom builds a Record from a property lookup.
func recordFrom(get attrGetter) Record {
	r := Record{
		GEOID:       stringAttr(get, AttrGEOID),
		Name:        stringAttr(get, AttrName),
		Designation: stringAttr(get, AttrDesignation),
	}
	if v, ok := floatAttr(get, AttrLandArea); ok {
		r.LandArea = v
	}
	r.Population = intPtr(get, AttrPopulation)
	r.Income = floatPtr(get, AttrIncome)
	r.Rent = floatPtr(get, AttrRent)
	r.HomeValue = floatPtr(get, AttrHomeValue)
	r.PovertyRate = floatPtr(get, AttrPovertyRate)
	r.BachelorsPct = floatPtr(get, AttrBachelorsPct)
	r.EducationTotal = intPtr(get, AttrEducationTotal)
	return r
}

func stringAttr(get attrGetter, name string) string {
	v, ok := get(name)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// floatAttr coerces numbers and numeric strings. Blank strings are missing.
func floatAttr(get attrGetter, name string) (float64, bool) {
	v, ok := get(name)
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func floatPtr(get attrGetter, name string) *float64 {
	f, ok := floatAttr(get, name)
	if !ok {
		return nil
	}
	return &f
}

func intPtr(get attrGetter, name string) *int64 {
	f, ok := floatAttr(get, name)
	if !ok {
		return nil
	}
	n := int64(math.Round(f))
	return &n
}

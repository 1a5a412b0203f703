// Package aggregate computes statewide averages over a place collection.
package aggregate

import (
	"errors"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"

	"github.com/sells-group/placemap/internal/model"
)

// ErrEmptyInput is returned when there is no non-CDP place to average over.
// Callers are expected to guard against it rather than display a result.
var ErrEmptyInput = eris.New("aggregate: no places to average")

// Stat accumulates one attribute.
type Stat struct {
	Sum        float64 `json:"sum"`
	ValidCount int     `json:"valid_count"`
}

// Mean returns Sum/ValidCount, or 0 when nothing was counted. A zero mean for
// an attribute nearly every place reports indicates empty input, not a true
// value of zero.
func (s Stat) Mean() float64 {
	if s.ValidCount == 0 {
		return 0
	}
	return s.Sum / float64(s.ValidCount)
}

// Snapshot holds per-attribute accumulators over every non-CDP place.
// Snapshots are computed from scratch on each request.
type Snapshot struct {
	Places     int  `json:"places"`
	Population Stat `json:"population"`
	Density    Stat `json:"density"`
	Income     Stat `json:"income"`
	Rent       Stat `json:"rent"`
	HomeValue  Stat `json:"home_value"`
	Poverty    Stat `json:"poverty"`
}

// Averages are the rounded statewide means shown next to a place.
type Averages struct {
	Population int64   `json:"population"`
	Density    int64   `json:"density"`
	Income     int64   `json:"income"`
	Rent       int64   `json:"rent"`
	HomeValue  int64   `json:"home_value"`
	Poverty    float64 `json:"poverty"`
}

// Compute accumulates statistics over places, skipping every CDP.
//
// Population and density are summed for every remaining place, including a
// sentinel population, which is carried through unchanged. Income, rent and
// home value count only when present and positive; poverty rate counts when
// present and non-negative.
func Compute(places []model.Place) (Snapshot, error) {
	var population, density, income, rent, homeValue, poverty stats.Float64Data

	for i := range places {
		p := &places[i]
		if p.CDP {
			continue
		}
		population = append(population, float64(p.Population))
		density = append(density, float64(p.Density))

		if v, ok := p.Income.Get(); ok && v > 0 {
			income = append(income, v)
		}
		if v, ok := p.Rent.Get(); ok && v > 0 {
			rent = append(rent, v)
		}
		if v, ok := p.HomeValue.Get(); ok && v > 0 {
			homeValue = append(homeValue, v)
		}
		if v, ok := p.PovertyRate.Get(); ok && v >= 0 {
			poverty = append(poverty, v)
		}
	}

	var snap Snapshot
	var err error
	if snap.Population, err = accumulate(population); err != nil {
		if errors.Is(err, stats.ErrEmptyInput) {
			return Snapshot{}, ErrEmptyInput
		}
		return Snapshot{}, eris.Wrap(err, "aggregate: population")
	}
	snap.Places = snap.Population.ValidCount

	for _, a := range []struct {
		name string
		data stats.Float64Data
		dst  *Stat
	}{
		{"density", density, &snap.Density},
		{"income", income, &snap.Income},
		{"rent", rent, &snap.Rent},
		{"home value", homeValue, &snap.HomeValue},
		{"poverty", poverty, &snap.Poverty},
	} {
		st, err := accumulate(a.data)
		if err != nil && !errors.Is(err, stats.ErrEmptyInput) {
			return Snapshot{}, eris.Wrapf(err, "aggregate: %s", a.name)
		}
		*a.dst = st
	}

	return snap, nil
}

func accumulate(data stats.Float64Data) (Stat, error) {
	sum, err := stats.Sum(data)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Sum: sum, ValidCount: data.Len()}, nil
}

// Averages rounds the snapshot means for display: whole numbers for every
// attribute except poverty, which keeps two decimals.
func (s Snapshot) Averages() Averages {
	return Averages{
		Population: roundInt(s.Population.Mean()),
		Density:    roundInt(s.Density.Mean()),
		Income:     roundInt(s.Income.Mean()),
		Rent:       roundInt(s.Rent.Mean()),
		HomeValue:  roundInt(s.HomeValue.Mean()),
		Poverty:    model.RoundHalfUp(s.Poverty.Mean(), 2),
	}
}

// StateAverages computes and rounds in one step.
func StateAverages(places []model.Place) (Averages, error) {
	snap, err := Compute(places)
	if err != nil {
		return Averages{}, err
	}
	return snap.Averages(), nil
}

func roundInt(v float64) int64 {
	return int64(model.RoundHalfUp(v, 0))
}

// Package source loads place collections from GeoJSON, shapefiles, Postgres
// and SQLite, and normalizes raw attribute records into model.Place values.
package source

import (
	"context"
	"strconv"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/model"
)

// Source produces a place collection.
type Source interface {
	Load(ctx context.Context) ([]model.Place, error)
}

// Record is one raw place as read from a backing store. Nil pointers mark
// attributes that were absent.
type Record struct {
	FeatureID      string
	GEOID          string
	Name           string
	Designation    string
	LandArea       float64
	Population     *int64
	Income         *float64
	Rent           *float64
	HomeValue      *float64
	PovertyRate    *float64
	BachelorsPct   *float64
	EducationTotal *int64
	Bounds         *geom.Bounds
}

// Normalize converts raw records into places. The place id is the feature id,
// else the GEOID, else the record index. Later duplicates get the index
// appended, repeatedly if the result is itself taken, so ids stay unique.
// Optional attributes holding the census sentinel become missing; population
// is kept as read.
func Normalize(records []Record) []model.Place {
	places := make([]model.Place, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dupes := 0

	for i := range records {
		r := &records[i]

		id := r.FeatureID
		if id == "" {
			id = r.GEOID
		}
		if id == "" {
			id = strconv.Itoa(i)
		}
		if _, ok := seen[id]; ok {
			suffix := "-" + strconv.Itoa(i)
			for {
				id += suffix
				if _, taken := seen[id]; !taken {
					break
				}
			}
			dupes++
		}
		seen[id] = struct{}{}

		var pop int64
		if r.Population != nil {
			pop = *r.Population
		}

		places = append(places, model.Place{
			ID:             id,
			GEOID:          r.GEOID,
			Name:           r.Name,
			Designation:    r.Designation,
			Population:     pop,
			LandArea:       r.LandArea,
			Density:        model.DeriveDensity(pop, r.LandArea),
			CDP:            model.IsCDP(r.Designation),
			Income:         optFloat(r.Income),
			Rent:           optFloat(r.Rent),
			HomeValue:      optFloat(r.HomeValue),
			PovertyRate:    optFloat(r.PovertyRate),
			BachelorsPct:   optFloat(r.BachelorsPct),
			EducationTotal: optInt(r.EducationTotal),
			Bounds:         r.Bounds,
		})
	}

	if dupes > 0 {
		zap.L().Warn("source: duplicate place ids renamed", zap.Int("count", dupes))
	}
	return places
}

func optFloat(v *float64) model.Optional[float64] {
	if v == nil {
		return model.None[float64]()
	}
	return model.FromRaw(*v, true)
}

func optInt(v *int64) model.Optional[int64] {
	if v == nil {
		return model.None[int64]()
	}
	return model.FromRaw(*v, true)
}

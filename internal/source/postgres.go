package source

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/db"
	"github.com/sells-group/placemap/internal/model"
)

// Postgres loads places from geo.places joined with geo.demographics.
type Postgres struct {
	pool      db.Pool
	stateFIPS string
}

// NewPostgres returns a Postgres source. An empty stateFIPS loads every state.
func NewPostgres(pool db.Pool, stateFIPS string) *Postgres {
	return &Postgres{pool: pool, stateFIPS: stateFIPS}
}

const placesQuery = `
	SELECT
		p.geoid,
		p.name,
		p.namelsad,
		COALESCE((p.properties->>'ALAND')::double precision, ST_Area(p.geom::geography), 0) AS aland,
		d.total_pop,
		d.median_income,
		d.median_rent,
		d.median_home_value,
		d.poverty_rate,
		d.pct_bachelors_or_higher,
		d.educ_total,
		ST_XMin(p.geom), ST_YMin(p.geom), ST_XMax(p.geom), ST_YMax(p.geom)
	FROM geo.places p
	LEFT JOIN geo.demographics d ON d.geoid = p.geoid
	WHERE $1 = '' OR p.state_fips = $1
	ORDER BY p.geoid
`

// Load implements Source.
func (s *Postgres) Load(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx, placesQuery, s.stateFIPS)
	if err != nil {
		return nil, eris.Wrap(err, "source: query places")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                      Record
			minX, minY, maxX, maxY *float64
		)
		if err := rows.Scan(
			&r.GEOID, &r.Name, &r.Designation, &r.LandArea,
			&r.Population, &r.Income, &r.Rent, &r.HomeValue,
			&r.PovertyRate, &r.BachelorsPct, &r.EducationTotal,
			&minX, &minY, &maxX, &maxY,
		); err != nil {
			return nil, eris.Wrap(err, "source: scan place row")
		}
		if minX != nil && minY != nil && maxX != nil && maxY != nil {
			r.Bounds = geom.NewBounds(geom.XY).Set(*minX, *minY, *maxX, *maxY)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate place rows")
	}
	if len(records) == 0 {
		return nil, eris.Errorf("source: no places for state %q", s.stateFIPS)
	}

	zap.L().Info("source: postgres loaded",
		zap.String("state_fips", s.stateFIPS),
		zap.Int("places", len(records)),
	)
	return Normalize(records), nil
}

var (
	placesUpsert = db.Upsert{
		Table:   "geo.places",
		Columns: []string{"geoid", "state_fips", "name", "namelsad", "properties"},
		Keys:    []string{"geoid"},
	}
	demographicsUpsert = db.Upsert{
		Table: "geo.demographics",
		Columns: []string{
			"geoid", "total_pop", "median_income", "median_rent", "median_home_value",
			"poverty_rate", "pct_bachelors_or_higher", "educ_total",
		},
		Keys: []string{"geoid"},
	}
)

// WritePostgres upserts places into geo.places and geo.demographics. Missing
// optional attributes are written as NULL.
func WritePostgres(ctx context.Context, pool db.Pool, places []model.Place) (int64, error) {
	placeRows := make([][]any, 0, len(places))
	demoRows := make([][]any, 0, len(places))
	for i := range places {
		p := &places[i]
		geoid := p.GEOID
		if geoid == "" {
			geoid = p.ID
		}
		props, err := json.Marshal(map[string]float64{AttrLandArea: p.LandArea})
		if err != nil {
			return 0, eris.Wrap(err, "source: encode place properties")
		}
		placeRows = append(placeRows, []any{geoid, stateFIPS(geoid), p.Name, p.Designation, string(props)})
		demoRows = append(demoRows, []any{
			geoid, p.Population,
			nullable(p.Income), nullable(p.Rent), nullable(p.HomeValue),
			nullable(p.PovertyRate), nullable(p.BachelorsPct), nullable(p.EducationTotal),
		})
	}

	n, err := placesUpsert.Run(ctx, pool, placeRows)
	if err != nil {
		return 0, err
	}
	if _, err := demographicsUpsert.Run(ctx, pool, demoRows); err != nil {
		return 0, err
	}
	return n, nil
}

// stateFIPS is the two-digit state prefix of a place GEOID.
func stateFIPS(geoid string) string {
	if len(geoid) < 2 {
		return ""
	}
	return geoid[:2]
}

func nullable[T model.Number](o model.Optional[T]) any {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return v
}

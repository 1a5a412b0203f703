package source

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/model"
)

// Shapefile loads places from a TIGER/Line place shapefile joined with ACS
// attributes.
type Shapefile struct {
	Path string
}

// NewShapefile returns a shapefile source for the .shp at path.
func NewShapefile(path string) *Shapefile {
	return &Shapefile{Path: path}
}

// Load implements Source.
func (s *Shapefile) Load(ctx context.Context) ([]model.Place, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}
	index := fieldIndex(names)

	var records []Record
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, shape := reader.Shape()

		r := recordFrom(func(name string) (any, bool) {
			idx, ok := index(name)
			if !ok {
				return nil, false
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			return val, val != ""
		})

		if g := shapeGeometry(shape); g != nil {
			r.Bounds = g.Bounds()
		} else {
			skipped++
		}
		records = append(records, r)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: read shapefile %s", s.Path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("source: shapefile %s has no records", s.Path)
	}

	if skipped > 0 {
		zap.L().Debug("source: shapefile records without polygon geometry",
			zap.String("path", s.Path),
			zap.Int("skipped", skipped),
		)
	}
	zap.L().Info("source: shapefile loaded",
		zap.String("path", s.Path),
		zap.Int("records", len(records)),
	)
	return Normalize(records), nil
}

// fieldIndex resolves attribute names against DBF field names, accepting
// names truncated to the dBase limit.
func fieldIndex(names []string) func(string) (int, bool) {
	return func(attr string) (int, bool) {
		want := strings.ToLower(attr)
		for i, n := range names {
			if n == want {
				return i, true
			}
		}
		if len(want) <= dbfNameLen {
			return 0, false
		}
		for i, n := range names {
			if len(n) >= dbfNameLen && strings.HasPrefix(want, n) {
				return i, true
			}
		}
		return 0, false
	}
}

// shapeGeometry converts polygon shapes to a MultiPolygon. Other shape types
// carry no place geometry.
func shapeGeometry(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/model"
)

// GeoJSON loads places from a FeatureCollection file.
type GeoJSON struct {
	Path string
}

// NewGeoJSON returns a GeoJSON source for path.
func NewGeoJSON(path string) *GeoJSON {
	return &GeoJSON{Path: path}
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// feature keeps the id raw because census layers use both numeric and
// string feature ids.
type feature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Load implements Source.
func (s *GeoJSON) Load(ctx context.Context) ([]model.Place, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read geojson %s", s.Path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := DecodeGeoJSON(data)
	if err != nil {
		return nil, eris.Wrapf(err, "source: decode geojson %s", s.Path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("source: geojson %s has no features", s.Path)
	}

	zap.L().Info("source: geojson loaded",
		zap.String("path", s.Path),
		zap.Int("features", len(records)),
	)
	return Normalize(records), nil
}

// DecodeGeoJSON parses a FeatureCollection into raw records.
func DecodeGeoJSON(data []byte) ([]Record, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "source: unmarshal feature collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("source: expected FeatureCollection, got %q", fc.Type)
	}

	records := make([]Record, 0, len(fc.Features))
	var badGeom int
	for _, f := range fc.Features {
		props := f.Properties
		r := recordFrom(func(name string) (any, bool) {
			v, ok := props[name]
			return v, ok
		})
		r.FeatureID = featureID(f.ID)

		bounds, err := decodeBounds(f.Geometry)
		if err != nil {
			badGeom++
		}
		r.Bounds = bounds
		records = append(records, r)
	}

	if badGeom > 0 {
		zap.L().Debug("source: features with unreadable geometry", zap.Int("count", badGeom))
	}
	return records, nil
}

func featureID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func decodeBounds(raw json.RawMessage) (*geom.Bounds, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "source: decode geometry")
	}
	if g == nil {
		return nil, nil
	}
	return g.Bounds(), nil
}

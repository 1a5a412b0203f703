package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/placemap/internal/config"
	"github.com/sells-group/placemap/internal/db"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/source"
)

// openSource builds the configured place source. The returned close function
// releases any database pool and is never nil.
func openSource(ctx context.Context, sc config.SourceConfig) (source.Source, func(), error) {
	noop := func() {}
	switch sc.Driver {
	case config.DriverGeoJSON:
		return source.NewGeoJSON(sc.Path), noop, nil
	case config.DriverShapefile:
		return source.NewShapefile(sc.Path), noop, nil
	case config.DriverSQLite:
		return source.NewSQLite(sc.Path), noop, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return source.NewPostgres(pool, sc.StateFIPS), pool.Close, nil
	default:
		return nil, noop, eris.Errorf("source: unknown driver %q", sc.Driver)
	}
}

// loadPlaces opens the configured source and reads the whole collection.
func loadPlaces(ctx context.Context, sc config.SourceConfig) ([]model.Place, error) {
	src, closeSrc, err := openSource(ctx, sc)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	places, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load places")
	}
	return places, nil
}

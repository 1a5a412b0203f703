package source

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/placemap/internal/model"
)

// SQLiteSchema creates the places table read by the SQLite source.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS places (
	geoid                   TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	namelsad                TEXT NOT NULL,
	aland                   REAL NOT NULL DEFAULT 0,
	total_pop               INTEGER,
	median_income           REAL,
	median_rent             REAL,
	median_home_value       REAL,
	poverty_rate            REAL,
	pct_bachelors_or_higher REAL,
	educ_total              INTEGER
);
`

// SQLite loads places from a local SQLite cache.
type SQLite struct {
	DSN string
}

// NewSQLite returns a SQLite source.
func NewSQLite(dsn string) *SQLite {
	return &SQLite{DSN: dsn}
}

const sqliteSelect = `
SELECT geoid, name, namelsad, aland, total_pop, median_income, median_rent,
	median_home_value, poverty_rate, pct_bachelors_or_higher, educ_total
FROM places
ORDER BY rowid`

// Load implements Source.
func (s *SQLite) Load(ctx context.Context) ([]model.Place, error) {
	conn, err := sql.Open("sqlite", s.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "source: open sqlite")
	}
	defer conn.Close()

	records, err := readSQLite(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("source: sqlite %s has no places", s.DSN)
	}

	zap.L().Info("source: sqlite loaded", zap.String("dsn", s.DSN), zap.Int("places", len(records)))
	return Normalize(records), nil
}

func readSQLite(ctx context.Context, conn *sql.DB) ([]Record, error) {
	rows, err := conn.QueryContext(ctx, sqliteSelect)
	if err != nil {
		return nil, eris.Wrap(err, "source: query sqlite places")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                                      Record
			pop, educ                              sql.NullInt64
			income, rent, home, poverty, bachelors sql.NullFloat64
		)
		if err := rows.Scan(
			&r.GEOID, &r.Name, &r.Designation, &r.LandArea,
			&pop, &income, &rent, &home, &poverty, &bachelors, &educ,
		); err != nil {
			return nil, eris.Wrap(err, "source: scan sqlite place")
		}
		r.Population = nullInt(pop)
		r.EducationTotal = nullInt(educ)
		r.Income = nullFloat(income)
		r.Rent = nullFloat(rent)
		r.HomeValue = nullFloat(home)
		r.PovertyRate = nullFloat(poverty)
		r.BachelorsPct = nullFloat(bachelors)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate sqlite places")
	}
	return records, nil
}

// WriteSQLite creates the places table if needed and replaces its rows with
// the given collection.
func WriteSQLite(ctx context.Context, dsn string, places []model.Place) (int64, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, eris.Wrap(err, "source: open sqlite")
	}
	defer conn.Close()
	return writeSQLite(ctx, conn, places)
}

func writeSQLite(ctx context.Context, conn *sql.DB, places []model.Place) (int64, error) {
	if _, err := conn.ExecContext(ctx, SQLiteSchema); err != nil {
		return 0, eris.Wrap(err, "source: sqlite migrate")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "source: sqlite begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO places (geoid, name, namelsad, aland, total_pop, median_income,
	median_rent, median_home_value, poverty_rate, pct_bachelors_or_higher, educ_total)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "source: sqlite prepare")
	}
	defer stmt.Close()

	var n int64
	for i := range places {
		p := &places[i]
		geoid := p.GEOID
		if geoid == "" {
			geoid = p.ID
		}
		if _, err := stmt.ExecContext(ctx,
			geoid, p.Name, p.Designation, p.LandArea, p.Population,
			nullable(p.Income), nullable(p.Rent), nullable(p.HomeValue),
			nullable(p.PovertyRate), nullable(p.BachelorsPct), nullable(p.EducationTotal),
		); err != nil {
			return 0, eris.Wrapf(err, "source: sqlite insert %s", geoid)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "source: sqlite commit")
	}
	return n, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

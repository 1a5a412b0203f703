package source

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placemap/internal/model"
)

var placeColumns = []string{
	"geoid", "name", "namelsad", "aland",
	"total_pop", "median_income", "median_rent", "median_home_value",
	"poverty_rate", "pct_bachelors_or_higher", "educ_total",
	"st_xmin", "st_ymin", "st_xmax", "st_ymax",
}

// Typed nils stand in for SQL NULL in nullable columns.
var (
	noInt   *int64
	noFloat *float64
)

func TestPostgres_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(placeColumns).
		AddRow("0820000", "Denver", "Denver city", float64(model.SquareMetersPerSquareMile*100),
			ptr(int64(715522)), ptr(85853.0), ptr(1711.0), ptr(float64(model.Sentinel)),
			ptr(11.2), ptr(53.0), ptr(int64(512345)),
			ptr(-105.1), ptr(39.6), ptr(-104.6), ptr(39.9)).
		AddRow("0807850", "Boulder", "Boulder CDP", 0.0,
			noInt, noFloat, noFloat, noFloat, noFloat, noFloat, noInt,
			noFloat, noFloat, noFloat, noFloat)

	mock.ExpectQuery("SELECT").WithArgs("08").WillReturnRows(rows)

	places, err := NewPostgres(mock, "08").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)

	denver := places[0]
	assert.Equal(t, "0820000", denver.ID)
	assert.Equal(t, int64(715522), denver.Population)
	assert.Equal(t, int64(7155), denver.Density)
	assert.False(t, denver.HomeValue.Valid())
	assert.Equal(t, []float64{-105.1, 39.6, -104.6, 39.9}, denver.Extent())

	boulder := places[1]
	assert.True(t, boulder.CDP)
	assert.Zero(t, boulder.Population)
	assert.False(t, boulder.Income.Valid())
	assert.Nil(t, boulder.Extent())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WithArgs("").WillReturnError(errors.New("relation does not exist"))

	_, err = NewPostgres(mock, "").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query places")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WithArgs("99").WillReturnRows(pgxmock.NewRows(placeColumns))

	_, err = NewPostgres(mock, "99").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no places for state "99"`)
}

func TestWritePostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	places := Normalize([]Record{
		{GEOID: "0820000", Name: "Denver", Designation: "Denver city", Population: ptr(int64(715522)), Income: ptr(85853.0)},
		{GEOID: "0807850", Name: "Boulder", Designation: "Boulder CDP"},
	})

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_geo_places"}, placesUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_geo_demographics"}, demographicsUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := WritePostgres(context.Background(), mock, places)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateFIPS(t *testing.T) {
	assert.Equal(t, "08", stateFIPS("0820000"))
	assert.Equal(t, "", stateFIPS("8"))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(model.None[float64]()))
	assert.Equal(t, 1.5, nullable(model.Some(1.5)))
	assert.Equal(t, int64(3), nullable(model.Some(int64(3))))
}

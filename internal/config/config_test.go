package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverGeoJSON, cfg.Source.Driver)
	assert.Equal(t, "data/places.geojson", cfg.Source.Path)
	assert.Empty(t, cfg.Source.DatabaseURL)
	assert.Equal(t, 15, cfg.Chart.TopN)
	assert.Equal(t, "population", cfg.Chart.Metric)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 2.0, cfg.Server.LoadRate, 0.0001)
	assert.Equal(t, 5, cfg.Server.LoadBurst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  driver: shapefile
  path: data/tl_2023_08_place.shp
  state_fips: "08"
chart:
  top_n: 10
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://maps.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverShapefile, cfg.Source.Driver)
	assert.Equal(t, "data/tl_2023_08_place.shp", cfg.Source.Path)
	assert.Equal(t, "08", cfg.Source.StateFIPS)
	assert.Equal(t, 10, cfg.Chart.TopN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://maps.example.com"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, "population", cfg.Chart.Metric)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PLACEMAP_SOURCE_DRIVER", "postgres")
	t.Setenv("PLACEMAP_SOURCE_DATABASE_URL", "postgres://localhost/geo")
	t.Setenv("PLACEMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Source.Driver)
	assert.Equal(t, "postgres://localhost/geo", cfg.Source.DatabaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PLACEMAP_SERVER_PORT", "3000")
	t.Setenv("PLACEMAP_CHART_TOP_N", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Chart.TopN)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("source: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.Driver = DriverGeoJSON
	cfg.Source.Path = "data/places.geojson"
	cfg.Chart.TopN = 15
	cfg.Chart.Metric = "population"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Modes(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("report"))
	assert.NoError(t, cfg.Validate("import"))

	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Report does not listen.
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidate_LoadRate(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.LoadRate = -1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.load_rate must be >= 0")
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"geojson needs path", func(c *Config) { c.Source.Path = "" }, "source.path is required for driver geojson"},
		{"sqlite needs path", func(c *Config) { c.Source.Driver = DriverSQLite; c.Source.Path = "" }, "source.path is required for driver sqlite"},
		{"postgres needs url", func(c *Config) { c.Source.Driver = DriverPostgres }, "source.database_url is required"},
		{"postgres ok", func(c *Config) { c.Source.Driver = DriverPostgres; c.Source.DatabaseURL = "postgres://x" }, ""},
		{"unknown driver", func(c *Config) { c.Source.Driver = "csv" }, "source.driver must be one of"},
		{"bad fips", func(c *Config) { c.Source.StateFIPS = "8" }, "source.state_fips must be two digits"},
		{"good fips", func(c *Config) { c.Source.StateFIPS = "08" }, ""},
		{"top n", func(c *Config) { c.Chart.TopN = 0 }, "chart.top_n must be >= 1"},
		{"metric", func(c *Config) { c.Chart.Metric = "area" }, "chart.metric must be population or density"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("report")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "source.driver")
	assert.Contains(t, err.Error(), "chart.top_n")
	assert.Contains(t, err.Error(), "chart.metric")
}

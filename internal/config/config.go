package config

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/placemap/internal/model"
)

// Source drivers.
const (
	DriverGeoJSON   = "geojson"
	DriverShapefile = "shapefile"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
)

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Chart  ChartConfig  `yaml:"chart" mapstructure:"chart"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig selects where the place collection is loaded from.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	StateFIPS   string `yaml:"state_fips" mapstructure:"state_fips"`
}

// ChartConfig configures ranking defaults.
type ChartConfig struct {
	TopN   int    `yaml:"top_n" mapstructure:"top_n"`
	Metric string `yaml:"metric" mapstructure:"metric"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	LoadRate       float64  `yaml:"load_rate" mapstructure:"load_rate"`
	LoadBurst      int      `yaml:"load_burst" mapstructure:"load_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLACEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("source.driver", DriverGeoJSON)
	v.SetDefault("source.path", "data/places.geojson")
	v.SetDefault("source.database_url", "")
	v.SetDefault("source.state_fips", "")
	v.SetDefault("chart.top_n", 15)
	v.SetDefault("chart.metric", string(model.MetricPopulation))
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.load_rate", 2.0)
	v.SetDefault("server.load_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var fipsPattern = regexp.MustCompile(`^\d{2}$`)

// Validate checks the settings a command mode depends on. Mode is one of
// "serve", "report" or "import".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.LoadRate < 0 {
			errs = append(errs, "server.load_rate must be >= 0")
		}
	case "report", "import":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Source.Driver {
	case DriverGeoJSON, DriverShapefile, DriverSQLite:
		if c.Source.Path == "" {
			errs = append(errs, "source.path is required for driver "+c.Source.Driver)
		}
	case DriverPostgres:
		if c.Source.DatabaseURL == "" {
			errs = append(errs, "source.database_url is required for driver postgres")
		}
	default:
		errs = append(errs, "source.driver must be one of geojson, shapefile, postgres, sqlite")
	}

	if c.Source.StateFIPS != "" && !fipsPattern.MatchString(c.Source.StateFIPS) {
		errs = append(errs, "source.state_fips must be two digits")
	}
	if c.Chart.TopN < 1 {
		errs = append(errs, "chart.top_n must be >= 1")
	}
	if _, err := model.ParseMetric(c.Chart.Metric); err != nil {
		errs = append(errs, "chart.metric must be population or density")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

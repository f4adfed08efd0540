package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "POLLTRENDS_CONFIG"
	sourceURLEnv    = "POLLTRENDS_URL"
	logLevelEnv     = "POLLTRENDS_LOG_LEVEL"
	outputDirEnv    = "POLLTRENDS_OUTPUT_DIR"
	databaseDSNEnv  = "DATABASE_DSN"
	databaseTypeEnv = "DATABASE_DRIVER"

	// DefaultSourceURL is the published poll table.
	DefaultSourceURL = "https://cdn-dev.economistdatateam.com/jobs/pds/code-test/index.html"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source          SourceConfig          `yaml:"source"`
	Cleaning        CleaningConfig        `yaml:"cleaning"`
	MovingAverage   MovingAverageConfig   `yaml:"movingAverage"`
	GaussianProcess GaussianProcessConfig `yaml:"gaussianProcess"`
	Methods         []string              `yaml:"methods" validate:"min=1,dive,oneof=moving-average gaussian-process"`
	Workers         int                   `yaml:"workers" validate:"gte=1,lte=64"`
	Band            float64               `yaml:"band" validate:"gt=0"`
	Output          OutputConfig          `yaml:"output"`
	Database        DatabaseConfig        `yaml:"database"`
	Schedule        ScheduleConfig        `yaml:"schedule"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// SourceConfig points at the page holding the poll table.
type SourceConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// CleaningConfig toggles column-level cleaning rules.
type CleaningConfig struct {
	RescalePercentages *bool `yaml:"rescalePercentages"`
}

// Rescale reports whether entity values in (1, 100] are divided by 100.
func (c CleaningConfig) Rescale() bool {
	return c.RescalePercentages == nil || *c.RescalePercentages
}

// MovingAverageConfig parametrizes the rolling estimator.
type MovingAverageConfig struct {
	Window       int   `yaml:"window" validate:"gte=1"`
	ClipOutliers *bool `yaml:"clipOutliers"`
}

// Clip reports whether values are clipped to the 1st/99th percentile.
func (c MovingAverageConfig) Clip() bool {
	return c.ClipOutliers == nil || *c.ClipOutliers
}

// GaussianProcessConfig parametrizes the regression estimator.
type GaussianProcessConfig struct {
	Restarts int     `yaml:"restarts" validate:"gte=0"`
	Alpha    float64 `yaml:"alpha" validate:"gt=0"`
	Nu       float64 `yaml:"nu" validate:"gt=0"`
	Seed     uint64  `yaml:"seed"`
}

// OutputConfig names the files written by a run, relative to Dir.
type OutputConfig struct {
	Dir       string `yaml:"dir" validate:"required"`
	TableCSV  string `yaml:"tableCsv"`
	TrendCSV  string `yaml:"trendCsv"`
	TrendXLSX string `yaml:"trendXlsx"`
	Charts    *bool  `yaml:"charts"`
}

// Path resolves name against Dir; an empty name disables the output.
func (o OutputConfig) Path(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// ChartsEnabled reports whether PNG charts are rendered.
func (o OutputConfig) ChartsEnabled() bool {
	return o.Charts == nil || *o.Charts
}

// DatabaseConfig describes the optional SQL archive.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN     string `yaml:"dsn" validate:"required_if=Enabled true"`
}

// ScheduleConfig sets how often the watch mode refreshes the table.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// LoggingConfig sets the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Load reads YAML configuration (if present), the .env file and environment overrides,
// then validates the result. An empty path falls back to POLLTRENDS_CONFIG.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit YAML path; an empty path uses defaults only.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its validation tags.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(sourceURLEnv); v != "" {
		c.Source.URL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
		c.Database.Enabled = true
	}

	if v := os.Getenv(databaseTypeEnv); v != "" {
		c.Database.Driver = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Source.URL != "" {
		base.Source.URL = override.Source.URL
	}
	if override.Source.Timeout != 0 {
		base.Source.Timeout = override.Source.Timeout
	}

	if override.Cleaning.RescalePercentages != nil {
		base.Cleaning.RescalePercentages = override.Cleaning.RescalePercentages
	}

	if override.MovingAverage.Window != 0 {
		base.MovingAverage.Window = override.MovingAverage.Window
	}
	if override.MovingAverage.ClipOutliers != nil {
		base.MovingAverage.ClipOutliers = override.MovingAverage.ClipOutliers
	}

	if override.GaussianProcess.Restarts != 0 {
		base.GaussianProcess.Restarts = override.GaussianProcess.Restarts
	}
	if override.GaussianProcess.Alpha != 0 {
		base.GaussianProcess.Alpha = override.GaussianProcess.Alpha
	}
	if override.GaussianProcess.Nu != 0 {
		base.GaussianProcess.Nu = override.GaussianProcess.Nu
	}
	if override.GaussianProcess.Seed != 0 {
		base.GaussianProcess.Seed = override.GaussianProcess.Seed
	}

	if len(override.Methods) > 0 {
		base.Methods = override.Methods
	}
	if override.Workers != 0 {
		base.Workers = override.Workers
	}
	if override.Band != 0 {
		base.Band = override.Band
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if override.Output.TableCSV != "" {
		base.Output.TableCSV = override.Output.TableCSV
	}
	if override.Output.TrendCSV != "" {
		base.Output.TrendCSV = override.Output.TrendCSV
	}
	if override.Output.TrendXLSX != "" {
		base.Output.TrendXLSX = override.Output.TrendXLSX
	}
	if override.Output.Charts != nil {
		base.Output.Charts = override.Output.Charts
	}

	if override.Database.Enabled {
		base.Database.Enabled = true
	}
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Schedule.Interval != 0 {
		base.Schedule.Interval = override.Schedule.Interval
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Source:          SourceConfig{URL: DefaultSourceURL, Timeout: 30 * time.Second},
		MovingAverage:   MovingAverageConfig{Window: 10},
		GaussianProcess: GaussianProcessConfig{Restarts: 10, Alpha: 1e-3, Nu: 5.5},
		Methods:         []string{"moving-average", "gaussian-process"},
		Workers:         1,
		Band:            3,
		Output: OutputConfig{
			Dir:       "output",
			TableCSV:  "polls.csv",
			TrendCSV:  "trends.csv",
			TrendXLSX: "trends.xlsx",
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:polltrends.db"},
		Schedule: ScheduleConfig{Interval: 24 * time.Hour},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

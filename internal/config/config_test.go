package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Source.URL != DefaultSourceURL {
		t.Fatalf("unexpected url %q", cfg.Source.URL)
	}
	if cfg.MovingAverage.Window != 10 || !cfg.MovingAverage.Clip() {
		t.Fatalf("unexpected moving average config %+v", cfg.MovingAverage)
	}
	if cfg.GaussianProcess.Restarts != 10 || cfg.GaussianProcess.Alpha != 1e-3 || cfg.GaussianProcess.Nu != 5.5 {
		t.Fatalf("unexpected gaussian process config %+v", cfg.GaussianProcess)
	}
	if !cfg.Cleaning.Rescale() || !cfg.Output.ChartsEnabled() {
		t.Fatal("rescale and charts should default to enabled")
	}
	if cfg.Workers != 1 {
		t.Fatalf("workers = %d, want 1 (sequential)", cfg.Workers)
	}
	if cfg.Band != 3 {
		t.Fatalf("band = %v, want 3", cfg.Band)
	}
	if cfg.Database.Enabled {
		t.Fatal("database should be disabled by default")
	}
}

func TestLoadFileMergesYAML(t *testing.T) {
	path := writeYAML(t, `
source:
  url: https://example.org/polls.html
  timeout: 5s
cleaning:
  rescalePercentages: false
movingAverage:
  window: 7
  clipOutliers: false
methods: [moving-average]
output:
  dir: /tmp/out
  charts: false
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Source.URL != "https://example.org/polls.html" || cfg.Source.Timeout != 5*time.Second {
		t.Fatalf("unexpected source %+v", cfg.Source)
	}
	if cfg.Cleaning.Rescale() {
		t.Fatal("rescale should be disabled")
	}
	if cfg.MovingAverage.Window != 7 || cfg.MovingAverage.Clip() {
		t.Fatalf("unexpected moving average config %+v", cfg.MovingAverage)
	}
	if len(cfg.Methods) != 1 || cfg.Methods[0] != "moving-average" {
		t.Fatalf("unexpected methods %v", cfg.Methods)
	}
	if cfg.Output.ChartsEnabled() {
		t.Fatal("charts should be disabled")
	}
	if got := cfg.Output.Path(cfg.Output.TableCSV); got != filepath.Join("/tmp/out", "polls.csv") {
		t.Fatalf("table path = %q", got)
	}
	if cfg.GaussianProcess.Restarts != 10 {
		t.Fatalf("untouched section lost its default: %+v", cfg.GaussianProcess)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv(sourceURLEnv, "https://override.example.org/")
	t.Setenv(databaseDSNEnv, "postgres://u:p@localhost/polls")
	t.Setenv(databaseTypeEnv, "postgres")
	t.Setenv(logLevelEnv, "debug")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Source.URL != "https://override.example.org/" {
		t.Fatalf("url override not applied: %q", cfg.Source.URL)
	}
	if !cfg.Database.Enabled || cfg.Database.Driver != "postgres" {
		t.Fatalf("database override not applied: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := writeYAML(t, `
methods: [moving-average, kalman]
database:
  driver: mysql
`)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Methods[1]", "Driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFileMissingPath(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	out := OutputConfig{Dir: "out"}
	if out.Path("") != "" {
		t.Fatal("empty name should disable the output")
	}
	if out.Path("/abs/file.csv") != "/abs/file.csv" {
		t.Fatal("absolute names are kept")
	}
}

package chart

import (
	"context"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PollTrends/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2023, time.May, d, 0, 0, 0, 0, time.UTC)
}

func testTable() domain.CleanedTable {
	return domain.CleanedTable{
		Entities: []string{"Alpha"},
		Records: []domain.PollRecord{
			{Date: day(1), Pollster: "A", Values: []domain.Value{domain.Number(0.40)}},
			{Date: day(3), Pollster: "B", Values: []domain.Value{domain.Number(0.44)}},
			{Pollster: "undated", Values: []domain.Value{domain.Number(0.9)}},
		},
	}
}

func TestRenderWritesPNG(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRenderer(dir, 3, nil)

	estimates := []domain.TrendEstimate{{
		Entity: "Alpha",
		Method: domain.MethodMovingAverage,
		Points: []domain.TrendPoint{
			{Date: day(1), Offset: 0, Center: 0.40, Dispersion: math.NaN()},
			{Date: day(2), Offset: 1, Center: 0.41, Dispersion: 0.01},
			{Date: day(3), Offset: 2, Center: 0.42, Dispersion: 0.02},
		},
	}}

	if err := r.Render(context.Background(), testTable(), domain.MethodMovingAverage, estimates); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "moving_average.png"))
	if err != nil {
		t.Fatalf("open chart: %v", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != defaultWidth || cfg.Height != defaultHeight {
		t.Fatalf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, defaultWidth, defaultHeight)
	}
}

func TestRenderSinglePoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRenderer(dir, 3, nil)

	table := domain.CleanedTable{
		Entities: []string{"Alpha"},
		Records:  []domain.PollRecord{{Date: day(2), Values: []domain.Value{domain.Number(0.5)}}},
	}
	estimates := []domain.TrendEstimate{{
		Entity: "Alpha",
		Method: domain.MethodGaussianProcess,
		Points: []domain.TrendPoint{{Date: day(2), Center: 0.5, Dispersion: 0}},
	}}

	if err := r.Render(context.Background(), table, domain.MethodGaussianProcess, estimates); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "gaussian_process.png")); err != nil {
		t.Fatalf("chart not written: %v", err)
	}
}

func TestRenderSkipsOtherMethods(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewRenderer(dir, 3, nil)

	estimates := []domain.TrendEstimate{{
		Entity: "Alpha",
		Method: domain.MethodMovingAverage,
		Points: []domain.TrendPoint{{Date: day(1), Center: 0.4}},
	}}

	if err := r.Render(context.Background(), testTable(), domain.MethodGaussianProcess, estimates); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestSegmentsSplitOnNaN(t *testing.T) {
	t.Parallel()

	xs := []time.Time{day(1), day(2), day(3), day(4)}
	got := segments(xs, []float64{math.NaN(), 1, math.NaN(), 2})
	if len(got) != 2 {
		t.Fatalf("segments = %d, want 2", len(got))
	}
	if !got[0].x[0].Equal(day(2)) || !got[1].x[0].Equal(day(4)) {
		t.Fatalf("unexpected segment starts: %v, %v", got[0].x[0], got[1].x[0])
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	if got := FileName(domain.MethodGaussianProcess); got != "gaussian_process.png" {
		t.Fatalf("FileName() = %q", got)
	}
}

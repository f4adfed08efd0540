package chart

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
)

// Renderer draws one PNG per method with observations, center lines and bands.
type Renderer struct {
	dir    string
	band   float64
	width  int
	height int
	logger *slog.Logger
}

var _ ports.ChartRenderer = (*Renderer)(nil)

// NewRenderer writes charts into dir; band is the dispersion multiplier.
func NewRenderer(dir string, band float64, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{
		dir:    dir,
		band:   band,
		width:  defaultWidth,
		height: defaultHeight,
		logger: logger.With("component", "chart"),
	}
}

// FileName maps a method to its chart file, e.g. moving_average.png.
func FileName(method string) string {
	return strings.ReplaceAll(method, "-", "_") + ".png"
}

// Render draws the estimates of method together with the table observations.
// Nothing is written when no estimate belongs to method.
func (r *Renderer) Render(ctx context.Context, table domain.CleanedTable, method string, estimates []domain.TrendEstimate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		series []chart.Series
		bounds extent
		color  int
	)
	for _, est := range estimates {
		if est.Method != method || len(est.Points) == 0 {
			continue
		}
		col := chart.GetDefaultColor(color)
		color++

		obsX, obsY := observations(table, est.Entity)
		if len(obsX) > 0 {
			series = append(series, chart.TimeSeries{
				Name:    est.Entity,
				Style:   pointStyle(col.WithAlpha(90)),
				XValues: obsX,
				YValues: obsY,
			})
			bounds.add(obsX, obsY)
		}

		xs := make([]time.Time, len(est.Points))
		centers := make([]float64, len(est.Points))
		for i, p := range est.Points {
			xs[i], centers[i] = p.Date, p.Center
		}
		series = append(series, chart.TimeSeries{
			Name:    fmt.Sprintf("%s %s", est.Entity, method),
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 2},
			XValues: xs,
			YValues: centers,
		})
		bounds.add(xs, centers)

		lower, upper := est.Band(r.band)
		bandStyle := chart.Style{StrokeColor: col.WithAlpha(120), StrokeWidth: 1, StrokeDashArray: []float64{5, 5}}
		for _, seg := range segments(xs, lower) {
			series = append(series, chart.TimeSeries{Name: fmt.Sprintf("%s -%gσ", est.Entity, r.band), Style: bandStyle, XValues: seg.x, YValues: seg.y})
			bounds.add(seg.x, seg.y)
		}
		for _, seg := range segments(xs, upper) {
			series = append(series, chart.TimeSeries{Name: fmt.Sprintf("%s +%gσ", est.Entity, r.band), Style: bandStyle, XValues: seg.x, YValues: seg.y})
			bounds.add(seg.x, seg.y)
		}
	}
	if len(series) == 0 {
		r.logger.Debug("no estimates to draw", "method", method)
		return nil
	}

	ch := chart.Chart{
		Title:      titleFor(method),
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis:  chart.YAxis{Name: "Share"},
		Series: series,
	}
	if xr := bounds.xRange(); xr != nil {
		ch.XAxis.Range = xr
	}
	if yr := bounds.yRange(); yr != nil {
		ch.YAxis.Range = yr
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("chart: render %s: %w", method, err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("chart: create dir: %w", err)
	}
	path := filepath.Join(r.dir, FileName(method))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("chart: write %q: %w", path, err)
	}

	r.logger.Info("chart written", "method", method, "path", path)
	return nil
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func titleFor(method string) string {
	switch method {
	case domain.MethodMovingAverage:
		return "Moving average poll trends"
	case domain.MethodGaussianProcess:
		return "Gaussian process poll trends"
	default:
		return method
	}
}

// observations returns the dated, present values of entity in table order.
func observations(table domain.CleanedTable, entity string) ([]time.Time, []float64) {
	col := table.Column(entity)
	if col < 0 {
		return nil, nil
	}
	var (
		xs []time.Time
		ys []float64
	)
	for _, rec := range table.Records {
		if !rec.HasDate() || col >= len(rec.Values) || !rec.Values[col].Valid {
			continue
		}
		xs = append(xs, rec.Date)
		ys = append(ys, rec.Values[col].Number)
	}
	return xs, ys
}

type segment struct {
	x []time.Time
	y []float64
}

// segments splits ys into runs of finite values.
func segments(xs []time.Time, ys []float64) []segment {
	var (
		out []segment
		cur segment
	)
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			if len(cur.x) > 0 {
				out = append(out, cur)
				cur = segment{}
			}
			continue
		}
		cur.x = append(cur.x, xs[i])
		cur.y = append(cur.y, y)
	}
	if len(cur.x) > 0 {
		out = append(out, cur)
	}
	return out
}

// extent tracks the data bounds so degenerate ranges can be widened.
type extent struct {
	seen       bool
	minX, maxX time.Time
	minY, maxY float64
}

func (e *extent) add(xs []time.Time, ys []float64) {
	for i := range xs {
		if !e.seen {
			e.minX, e.maxX, e.minY, e.maxY = xs[i], xs[i], ys[i], ys[i]
			e.seen = true
			continue
		}
		if xs[i].Before(e.minX) {
			e.minX = xs[i]
		}
		if xs[i].After(e.maxX) {
			e.maxX = xs[i]
		}
		e.minY = math.Min(e.minY, ys[i])
		e.maxY = math.Max(e.maxY, ys[i])
	}
}

// xRange is nil unless every point falls on one date.
func (e extent) xRange() *chart.ContinuousRange {
	if !e.seen || e.maxX.After(e.minX) {
		return nil
	}
	return &chart.ContinuousRange{
		Min: chart.TimeToFloat64(e.minX.AddDate(0, 0, -1)),
		Max: chart.TimeToFloat64(e.maxX.AddDate(0, 0, 1)),
	}
}

// yRange is nil unless every value is equal.
func (e extent) yRange() *chart.ContinuousRange {
	if !e.seen || e.maxY > e.minY {
		return nil
	}
	pad := math.Max(math.Abs(e.minY)*0.1, 0.01)
	return &chart.ContinuousRange{Min: e.minY - pad, Max: e.maxY + pad}
}

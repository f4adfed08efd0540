package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
)

const trendSheet = "Trends"

// XLSXTrendWriter exports the moving-average projection as a spreadsheet.
type XLSXTrendWriter struct {
	path string
}

var _ ports.TrendSink = (*XLSXTrendWriter)(nil)

// NewXLSXTrendWriter binds the writer to a file path.
func NewXLSXTrendWriter(path string) *XLSXTrendWriter {
	return &XLSXTrendWriter{path: path}
}

// SaveTrends writes one row per day and one numeric column per entity.
func (w *XLSXTrendWriter) SaveTrends(_ context.Context, _ string, estimates []domain.TrendEstimate) error {
	grid := NewTrendGrid(estimates, domain.MethodMovingAverage)
	if len(grid.Days) == 0 {
		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", trendSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := append([]string{domain.ColumnDate}, grid.Entities...)
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(trendSheet, cell, h); err != nil {
			return fmt.Errorf("xlsx: write header: %w", err)
		}
	}

	for r, day := range grid.Days {
		rowIdx := r + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetCellValue(trendSheet, cell, formatDate(day)); err != nil {
			return fmt.Errorf("xlsx: write date: %w", err)
		}
		for c, v := range grid.Centers[r] {
			if !v.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, rowIdx)
			if err := f.SetCellFloat(trendSheet, cell, v.Number, -1, 64); err != nil {
				return fmt.Errorf("xlsx: write value: %w", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", w.path, err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"PollTrends/internal/domain"
	"PollTrends/internal/ports"
)

const dateLayout = "2006-01-02"

// CSVTableStore reads and writes the cleaned table as a delimited file.
type CSVTableStore struct {
	path string
}

var _ ports.TableSink = (*CSVTableStore)(nil)

// NewCSVTableStore binds the store to a file path.
func NewCSVTableStore(path string) *CSVTableStore {
	return &CSVTableStore{path: path}
}

// SaveTable writes table to the bound path, creating parent directories.
func (s *CSVTableStore) SaveTable(_ context.Context, _ string, table domain.CleanedTable) error {
	return writeFile(s.path, func(w io.Writer) error {
		return WriteTable(w, table)
	})
}

// Load reads the table back from the bound path.
func (s *CSVTableStore) Load() (domain.CleanedTable, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return domain.CleanedTable{}, fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()
	return ReadTable(f)
}

// WriteTable renders table as date,pollster,n,<entities...>; missing values are empty fields.
func WriteTable(w io.Writer, table domain.CleanedTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for i, rec := range table.Records {
		row := make([]string, 0, 3+len(rec.Values))
		row = append(row, formatDate(rec.Date), rec.Pollster, formatValue(rec.Sample))
		for _, v := range rec.Values {
			row = append(row, formatValue(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTable parses a file written by WriteTable.
func ReadTable(r io.Reader) (domain.CleanedTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return domain.CleanedTable{}, domain.NewStructuralError("csv file is empty")
	}
	if err != nil {
		return domain.CleanedTable{}, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) < 3 {
		return domain.CleanedTable{}, domain.NewStructuralError("csv header has %d columns, expected at least 3", len(header))
	}

	table := domain.CleanedTable{Entities: append([]string(nil), header[3:]...)}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.CleanedTable{}, fmt.Errorf("csv: read line %d: %w", line, err)
		}
		if len(row) != len(header) {
			return domain.CleanedTable{}, fmt.Errorf("csv: line %d has %d fields, header has %d", line, len(row), len(header))
		}

		rec := domain.PollRecord{Pollster: row[1], Values: make([]domain.Value, len(table.Entities))}
		if rec.Date, err = parseDate(row[0]); err != nil {
			return domain.CleanedTable{}, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if rec.Sample, err = parseValue(row[2]); err != nil {
			return domain.CleanedTable{}, fmt.Errorf("csv: line %d: %w", line, err)
		}
		for j := range rec.Values {
			if rec.Values[j], err = parseValue(row[3+j]); err != nil {
				return domain.CleanedTable{}, fmt.Errorf("csv: line %d: %w", line, err)
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// CSVTrendWriter exports moving-average centers as one row per day and one column per entity.
type CSVTrendWriter struct {
	path string
}

var _ ports.TrendSink = (*CSVTrendWriter)(nil)

// NewCSVTrendWriter binds the writer to a file path.
func NewCSVTrendWriter(path string) *CSVTrendWriter {
	return &CSVTrendWriter{path: path}
}

// SaveTrends writes the moving-average projection of estimates; other methods are ignored.
func (w *CSVTrendWriter) SaveTrends(_ context.Context, _ string, estimates []domain.TrendEstimate) error {
	grid := NewTrendGrid(estimates, domain.MethodMovingAverage)
	if len(grid.Days) == 0 {
		return nil
	}
	return writeFile(w.path, func(out io.Writer) error {
		return WriteTrendGrid(out, grid)
	})
}

// WriteTrendGrid renders the grid with the date as row key.
func WriteTrendGrid(w io.Writer, grid TrendGrid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{domain.ColumnDate}, grid.Entities...)); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i, d := range grid.Days {
		row := []string{formatDate(d)}
		for _, v := range grid.Centers[i] {
			row = append(row, formatValue(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file %q: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func formatValue(v domain.Value) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

func parseValue(s string) (domain.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Missing(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Missing(), fmt.Errorf("invalid number %q: %w", s, err)
	}
	return domain.Number(f), nil
}

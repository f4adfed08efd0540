package cleaning

import (
	"fmt"

	"PollTrends/internal/domain"
)

// Options controls the column-level rules applied after normalization.
type Options struct {
	// RescalePercentages divides entity values in (1, 100] by 100.
	RescalePercentages bool
	// DateLayouts are tried in order; DefaultDateLayouts when empty.
	DateLayouts []string
}

// DefaultOptions matches the behaviour of the published poll tables.
func DefaultOptions() Options {
	return Options{RescalePercentages: true, DateLayouts: DefaultDateLayouts}
}

// Assembler builds a CleanedTable from header labels and raw body rows.
type Assembler struct {
	opts Options
}

// NewAssembler returns an assembler with the provided options.
func NewAssembler(opts Options) *Assembler {
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultDateLayouts
	}
	return &Assembler{opts: opts}
}

// Assemble types every cell of rows against headers. Empty rows are skipped with
// a warning; a missing header or body is a StructuralError and no table is returned.
func (a *Assembler) Assemble(headers []string, rows [][]string) (domain.CleanedTable, domain.Diagnostics, error) {
	var diags domain.Diagnostics

	if len(headers) == 0 {
		return domain.CleanedTable{}, nil, domain.NewStructuralError("table has no header section")
	}
	entities, err := Classify(headers)
	if err != nil {
		return domain.CleanedTable{}, nil, err
	}
	if len(rows) == 0 {
		return domain.CleanedTable{}, nil, domain.NewStructuralError("table body has no rows")
	}

	width := fixedColumns + len(entities)
	table := domain.CleanedTable{
		Entities: entities,
		Records:  make([]domain.PollRecord, 0, len(rows)),
	}

	for i, row := range rows {
		if len(row) == 0 {
			diags.Warn(domain.DiagRowSkipped, i, "row has no cells")
			continue
		}
		if len(row) != width {
			diags.Warn(domain.DiagRowWidth, i, fmt.Sprintf("row has %d cells, header has %d", len(row), width))
		}

		cells := make([]Cell, width)
		for j := 0; j < width && j < len(row); j++ {
			cells[j] = Normalize(row[j])
		}

		record, ok := a.buildRecord(cells, len(entities))
		if !ok {
			diags.Warn(domain.DiagBadDate, i, fmt.Sprintf("unparseable date %q", cells[0].String()))
		}
		table.Records = append(table.Records, record)
	}

	if len(table.Records) == 0 {
		return domain.CleanedTable{}, diags, domain.NewStructuralError("table body has no usable rows")
	}
	return table, diags, nil
}

// buildRecord reports false when a present date cell could not be parsed.
func (a *Assembler) buildRecord(cells []Cell, entityCount int) (domain.PollRecord, bool) {
	record := domain.PollRecord{
		Pollster: cells[1].String(),
		Sample:   Coerce(cells[2]),
		Values:   make([]domain.Value, entityCount),
	}

	dateOK := true
	if cells[0].Kind != CellMissing {
		record.Date, dateOK = parseDate(cells[0].String(), a.opts.DateLayouts)
	}

	for j := range record.Values {
		v := Coerce(cells[fixedColumns+j])
		if a.opts.RescalePercentages {
			v = Rescale(v)
		}
		record.Values[j] = v
	}
	return record, dateOK
}

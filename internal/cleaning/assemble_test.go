package cleaning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PollTrends/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	got, err := Classify([]string{"Date", "Pollster", "Sample", "Bulstrode", "Lydgate"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bulstrode", "Lydgate"}, got)

	got, err = Classify([]string{"Date", "Pollster", "Sample"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassifyRejectsShortHeader(t *testing.T) {
	t.Parallel()

	for _, labels := range [][]string{nil, {"Date"}, {"Date", "Pollster"}} {
		_, err := Classify(labels)
		var structural *domain.StructuralError
		require.True(t, errors.As(err, &structural), "labels %v", labels)
	}

	_, err := Classify([]string{"Date", "Pollster", "Sample", "A", " A "})
	require.Error(t, err)
	_, err = Classify([]string{"Date", "Pollster", "Sample", " "})
	require.Error(t, err)
}

func TestAssembleSingleRow(t *testing.T) {
	t.Parallel()

	headers := []string{"Date", "Pollster", "Sample", "A", "B"}
	rows := [][]string{{"2023-01-01", "PollCo", "500", "45%", "0.30"}}

	table, diags, err := NewAssembler(DefaultOptions()).Assemble(headers, rows)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, []string{"date", "pollster", "n", "A", "B"}, table.Header())
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "PollCo", rec.Pollster)
	assert.Equal(t, domain.Number(500), rec.Sample)
	require.Len(t, rec.Values, 2)
	assert.InDelta(t, 0.45, rec.Values[0].Number, 1e-12)
	assert.InDelta(t, 0.30, rec.Values[1].Number, 1e-12)
}

func TestAssembleMixedRepresentations(t *testing.T) {
	t.Parallel()

	headers := []string{"Date", "Pollster", "Sample", "Bulstrode", "Others"}
	rows := [][]string{
		{"1/5/2023", "Ipsos*", "1,914*", "45", "N/A"},
		{},
		{"2023-01-07", "YouGov", "**", "0.41", "150"},
		{"not a date", "Opinium", "800", "44%"},
	}

	table, diags, err := NewAssembler(DefaultOptions()).Assemble(headers, rows)
	require.NoError(t, err)
	require.Len(t, table.Records, 3)

	assert.Equal(t, 1, diags.Count(domain.DiagRowSkipped))
	assert.Equal(t, 1, diags.Count(domain.DiagRowWidth))
	assert.Equal(t, 1, diags.Count(domain.DiagBadDate))

	first := table.Records[0]
	assert.Equal(t, "Ipsos", first.Pollster)
	assert.Equal(t, domain.Number(1914), first.Sample)
	assert.InDelta(t, 0.45, first.Values[0].Number, 1e-12)
	assert.False(t, first.Values[1].Valid)

	second := table.Records[1]
	assert.False(t, second.Sample.Valid)
	assert.InDelta(t, 0.41, second.Values[0].Number, 1e-12)
	assert.Equal(t, domain.Number(150), second.Values[1])

	third := table.Records[2]
	assert.False(t, third.HasDate())
	assert.InDelta(t, 0.44, third.Values[0].Number, 1e-12)
	assert.False(t, third.Values[1].Valid)

	for _, rec := range table.Records {
		assert.Len(t, rec.Values, len(table.Entities))
	}
}

func TestAssembleWithoutRescale(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.RescalePercentages = false

	table, _, err := NewAssembler(opts).Assemble(
		[]string{"Date", "Pollster", "Sample", "A"},
		[][]string{{"2023-01-01", "PollCo", "500", "45"}},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.Number(45), table.Records[0].Values[0])
}

func TestAssembleStructuralFailures(t *testing.T) {
	t.Parallel()

	a := NewAssembler(DefaultOptions())
	headers := []string{"Date", "Pollster", "Sample", "A"}

	cases := map[string]struct {
		headers []string
		rows    [][]string
	}{
		"headerless": {headers: nil, rows: [][]string{{"2023-01-01", "P", "1", "1"}}},
		"short":      {headers: []string{"Date", "Pollster"}, rows: [][]string{{"x"}}},
		"bodyless":   {headers: headers, rows: nil},
		"empty-rows": {headers: headers, rows: [][]string{{}, {}}},
	}

	for name, tc := range cases {
		_, _, err := a.Assemble(tc.headers, tc.rows)
		var structural *domain.StructuralError
		assert.True(t, errors.As(err, &structural), name)
	}
}

// Package cleaning turns scraped table text into typed poll records.
package cleaning

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"PollTrends/internal/domain"
)

// CellKind describes what Normalize recognised in a raw cell.
type CellKind int

const (
	CellMissing CellKind = iota
	CellFraction
	CellText
)

// footnoteOnly marks a cell that carries a footnote and no value.
const footnoteOnly = "**"

var (
	markerStripper = strings.NewReplacer("*", "", "+", "", ",", "")
	hundred        = decimal.NewFromInt(100)
)

// Cell is a normalized table cell. Fraction cells hold Number, text cells hold Text.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
}

// String renders the cell the way it is written to delimited output.
func (c Cell) String() string {
	switch c.Kind {
	case CellFraction:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Normalize cleans one raw cell. It never fails: text that does not parse is
// returned stripped and left for column coercion to reject.
func Normalize(raw string) Cell {
	if strings.TrimSpace(raw) == footnoteOnly {
		return Cell{Kind: CellMissing}
	}

	stripped := strings.TrimSpace(markerStripper.Replace(raw))
	if stripped == "" {
		return Cell{Kind: CellMissing}
	}

	if strings.Contains(raw, "%") {
		numeral := strings.TrimSpace(strings.ReplaceAll(stripped, "%", ""))
		d, err := decimal.NewFromString(numeral)
		if err != nil {
			return Cell{Kind: CellText, Text: stripped}
		}
		f, _ := d.Div(hundred).Float64()
		return Cell{Kind: CellFraction, Number: f}
	}

	return Cell{Kind: CellText, Text: stripped}
}

// Coerce types a normalized cell as a number; anything non-numeric is missing.
func Coerce(c Cell) domain.Value {
	switch c.Kind {
	case CellFraction:
		return domain.Number(c.Number)
	case CellText:
		if isHexLiteral(c.Text) {
			return domain.Missing()
		}
		f, err := strconv.ParseFloat(c.Text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.Missing()
		}
		return domain.Number(f)
	default:
		return domain.Missing()
	}
}

// isHexLiteral reports a 0x/0X prefix after an optional sign; ParseFloat would accept it.
func isHexLiteral(text string) bool {
	text = strings.TrimLeft(strings.TrimSpace(text), "+-")
	return len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X')
}

// Rescale applies the whole-percentage rule for entity columns:
// a value v with 1 < v <= 100 is read as a percentage and stored as v/100.
func Rescale(v domain.Value) domain.Value {
	if v.Valid && v.Number > 1 && v.Number <= 100 {
		return domain.Number(v.Number / 100)
	}
	return v
}

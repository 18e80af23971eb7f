// Package cell models spreadsheet cell values as a tagged variant and
// canonicalises numeric strings extracted from PDF tables.
package cell

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Cell.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindInteger
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Format is the display format attached to a cell.
type Format int

const (
	FormatNone             Format = iota
	FormatThousands               // #,##0
	FormatThousandsDecimal        // #,##0.00
)

// Built-in Excel number format ids for the two canonical formats.
const (
	NumFmtThousands        = 3
	NumFmtThousandsDecimal = 4
)

// NumFmt returns the Excel built-in number format id, or 0 for FormatNone.
func (f Format) NumFmt() int {
	switch f {
	case FormatThousands:
		return NumFmtThousands
	case FormatThousandsDecimal:
		return NumFmtThousandsDecimal
	default:
		return 0
	}
}

// Code returns the format code string used in spreadsheet styles.
func (f Format) Code() string {
	switch f {
	case FormatThousands:
		return "#,##0"
	case FormatThousandsDecimal:
		return "#,##0.00"
	default:
		return ""
	}
}

// FormatFromNumFmt maps an Excel number format id back to a Format.
func FormatFromNumFmt(id int) Format {
	switch id {
	case NumFmtThousands:
		return FormatThousands
	case NumFmtThousandsDecimal:
		return FormatThousandsDecimal
	default:
		return FormatNone
	}
}

// Cell is one spreadsheet value. The zero value is an empty cell.
type Cell struct {
	kind   Kind
	text   string
	num    int64
	dec    decimal.Decimal
	format Format
}

// Empty returns an empty cell.
func Empty() Cell { return Cell{} }

// Text returns a text cell holding s verbatim. An empty string yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{kind: KindText, text: s}
}

// Int returns an integer cell with the grouped-thousands format.
func Int(v int64) Cell {
	return Cell{kind: KindInteger, num: v, format: FormatThousands}
}

// Decimal returns a decimal cell with the grouped two-decimal format.
func Decimal(d decimal.Decimal) Cell {
	return Cell{kind: KindDecimal, dec: d, format: FormatThousandsDecimal}
}

// Kind reports which variant the cell holds.
func (c Cell) Kind() Kind { return c.kind }

// Format reports the display format tag.
func (c Cell) Format() Format { return c.format }

// WithFormat returns a copy of c carrying format f.
func (c Cell) WithFormat(f Format) Cell {
	c.format = f
	return c
}

// IsNumeric reports whether the cell holds an integer or a decimal.
func (c Cell) IsNumeric() bool {
	return c.kind == KindInteger || c.kind == KindDecimal
}

// IsBlank reports whether the cell is empty or whitespace-only text.
func (c Cell) IsBlank() bool {
	switch c.kind {
	case KindEmpty:
		return true
	case KindText:
		return strings.TrimSpace(c.text) == ""
	default:
		return false
	}
}

// IntValue returns the integer payload; ok is false for other kinds.
func (c Cell) IntValue() (int64, bool) {
	return c.num, c.kind == KindInteger
}

// DecimalValue returns the numeric payload as a decimal; ok is false for non-numeric cells.
func (c Cell) DecimalValue() (decimal.Decimal, bool) {
	switch c.kind {
	case KindInteger:
		return decimal.NewFromInt(c.num), true
	case KindDecimal:
		return c.dec, true
	default:
		return decimal.Zero, false
	}
}

// Value returns a value suitable for a spreadsheet writer: nil, string, int64 or float64.
func (c Cell) Value() any {
	switch c.kind {
	case KindText:
		return c.text
	case KindInteger:
		return c.num
	case KindDecimal:
		f, _ := c.dec.Float64()
		return f
	default:
		return nil
	}
}

// String returns the raw text for text cells and the plain numeric form otherwise.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindInteger:
		return strconv.FormatInt(c.num, 10)
	case KindDecimal:
		return c.dec.String()
	default:
		return ""
	}
}

// Render returns the cell as it is displayed: numbers in their canonical
// grouped form, text verbatim.
func (c Cell) Render() string {
	switch c.kind {
	case KindInteger:
		return group(strconv.FormatInt(c.num, 10))
	case KindDecimal:
		if c.format == FormatThousands {
			return group(c.dec.Round(0).String())
		}
		return group(c.dec.StringFixed(2))
	default:
		return c.String()
	}
}

// Equal compares kind, value and format.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind || c.format != o.format {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindInteger:
		return c.num == o.num
	case KindDecimal:
		return c.dec.Equal(o.dec)
	default:
		return true
	}
}

// group inserts a comma every three digits of the integer part of s.
func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}

	var b strings.Builder
	b.Grow(len(s) + len(intPart)/3 + 1)
	b.WriteString(sign)
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	b.WriteString(frac)
	return b.String()
}

package cell

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// numberPattern accepts an optional sign, either comma-grouped thousands or
// a bare run of digits, and an optional fractional part.
var numberPattern = regexp.MustCompile(`^-?\d{1,3}(,\d{3})*(\.\d+)?$|^-?\d+(\.\d+)?$`)

// exponentPattern matches scientific notation as spreadsheet files store
// very small or very large numbers, e.g. 1E-05.
var exponentPattern = regexp.MustCompile(`^-?\d+(\.\d+)?[eE][+-]?\d+$`)

// IsNumber reports whether s (after trimming) matches the numeric grammar.
func IsNumber(s string) bool {
	return numberPattern.MatchString(strings.TrimSpace(s))
}

// Normalize classifies a raw text value. Strings matching the numeric grammar
// become integer or decimal cells with their canonical format; anything else
// is returned unchanged as text. Empty input yields an empty cell.
func Normalize(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Empty()
	}
	if !numberPattern.MatchString(s) {
		return Text(raw)
	}

	cleaned := strings.ReplaceAll(s, ",", "")
	if strings.Contains(cleaned, ".") {
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return Text(raw)
		}
		return Decimal(d)
	}

	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		// Out of int64 range: keep the original text.
		return Text(raw)
	}
	return Int(v)
}

// NormalizeCell applies Normalize to text cells and assigns the canonical
// format to numeric cells without changing their value. It is idempotent.
func NormalizeCell(c Cell) Cell {
	switch c.kind {
	case KindText:
		return Normalize(c.text)
	case KindInteger:
		return c.WithFormat(FormatThousands)
	case KindDecimal:
		return c.WithFormat(FormatThousandsDecimal)
	default:
		return c
	}
}

// FromRaw interprets a raw spreadsheet value (as produced by a reader that
// returns unformatted numbers) and attaches format f when the value is numeric.
// Values already formatted for display, such as "1,234", are normalised too,
// as are exponent forms. A number read with FormatNone keeps FormatNone.
func FromRaw(raw string, f Format) Cell {
	c := Normalize(raw)
	if s := strings.TrimSpace(raw); c.kind == KindText && exponentPattern.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			c = Decimal(d)
		}
	}
	if !c.IsNumeric() {
		return c
	}
	switch f {
	case FormatThousands:
		if d, ok := c.DecimalValue(); ok && c.kind == KindDecimal && d.Equal(d.Truncate(0)) {
			return Int(d.IntPart())
		}
		return c.WithFormat(FormatThousands)
	case FormatThousandsDecimal:
		if c.kind == KindInteger {
			return Decimal(decimal.NewFromInt(c.num))
		}
		return c
	default:
		return c.WithFormat(FormatNone)
	}
}

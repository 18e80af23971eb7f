package cell

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   Kind
		render string
		format Format
	}{
		{"grouped decimal", "1,234.50", KindDecimal, "1,234.50", FormatThousandsDecimal},
		{"plain integer", "42", KindInteger, "42", FormatThousands},
		{"grouped integer", "1,234,567", KindInteger, "1,234,567", FormatThousands},
		{"negative grouped", "-12,345", KindInteger, "-12,345", FormatThousands},
		{"bare decimal", "1234.5", KindDecimal, "1,234.50", FormatThousandsDecimal},
		{"negative decimal", "-0.75", KindDecimal, "-0.75", FormatThousandsDecimal},
		{"surrounding spaces", "  9,999 ", KindInteger, "9,999", FormatThousands},
		{"label", "N/A", KindText, "N/A", FormatNone},
		{"percent", "12.5%", KindText, "12.5%", FormatNone},
		{"bad grouping", "12,34", KindText, "12,34", FormatNone},
		{"european", "1.234,56", KindText, "1.234,56", FormatNone},
		{"empty", "", KindEmpty, "", FormatNone},
		{"whitespace", "   ", KindEmpty, "", FormatNone},
		{"overflow", "99999999999999999999", KindText, "99999999999999999999", FormatNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.input)
			assert.Equal(t, tt.kind, c.Kind())
			assert.Equal(t, tt.format, c.Format())
			assert.Equal(t, tt.render, c.Render())
		})
	}
}

func TestNormalize_Values(t *testing.T) {
	c := Normalize("1,234.50")
	d, ok := c.DecimalValue()
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1234.50")))

	c = Normalize("42")
	v, ok := c.IntValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, int64(42), c.Value())

	c = Normalize("N/A")
	assert.Equal(t, "N/A", c.Value())
}

func TestNormalizeCell_Idempotent(t *testing.T) {
	inputs := []string{"1,234.50", "42", "N/A", "", "-7", "3.14159", "Total EU"}
	for _, in := range inputs {
		once := NormalizeCell(Text(in))
		twice := NormalizeCell(once)
		assert.True(t, once.Equal(twice), "normalising %q twice changed the cell", in)
	}
}

func TestNormalizeCell_NumericPassthrough(t *testing.T) {
	c := NormalizeCell(Int(1500).WithFormat(FormatNone))
	assert.Equal(t, KindInteger, c.Kind())
	assert.Equal(t, FormatThousands, c.Format())
	assert.Equal(t, "1,500", c.Render())

	c = NormalizeCell(Decimal(decimal.NewFromFloat(2.5)).WithFormat(FormatNone))
	assert.Equal(t, FormatThousandsDecimal, c.Format())
	assert.Equal(t, "2.50", c.Render())
}

func TestRender_RoundTrip(t *testing.T) {
	for _, in := range []string{"1,234.50", "42", "-1,000,000", "0.01"} {
		c := Normalize(in)
		again := Normalize(c.Render())
		assert.True(t, c.Equal(again), "render of %q did not round-trip: %q", in, c.Render())
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, Empty().IsBlank())
	assert.True(t, Text(" \t").IsBlank())
	assert.False(t, Text("x").IsBlank())
	assert.False(t, Int(0).IsBlank())
}

func TestFromRaw(t *testing.T) {
	c := FromRaw("1234", FormatThousandsDecimal)
	assert.Equal(t, KindDecimal, c.Kind())
	assert.Equal(t, "1,234.00", c.Render())

	c = FromRaw("1234.0", FormatThousands)
	assert.Equal(t, KindInteger, c.Kind())
	assert.Equal(t, "1,234", c.Render())

	c = FromRaw("Germany", FormatThousands)
	assert.Equal(t, KindText, c.Kind())
	assert.Equal(t, FormatNone, c.Format())
}

func TestFromRaw_KeepsMissingFormat(t *testing.T) {
	c := FromRaw("1234", FormatNone)
	assert.Equal(t, KindInteger, c.Kind())
	assert.Equal(t, FormatNone, c.Format())
	v, ok := c.IntValue()
	require.True(t, ok)
	assert.Equal(t, int64(1234), v)

	c = FromRaw("0.25", FormatNone)
	assert.Equal(t, KindDecimal, c.Kind())
	assert.Equal(t, FormatNone, c.Format())
}

func TestFromRaw_Exponent(t *testing.T) {
	tests := []struct {
		raw  string
		f    Format
		want string
	}{
		{"1E-05", FormatNone, "0.00001"},
		{"-2.5e+3", FormatNone, "-2500"},
		{"1.2E+2", FormatThousands, "120"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := FromRaw(tt.raw, tt.f)
			require.True(t, c.IsNumeric())
			assert.Equal(t, tt.f, c.Format())
			d, _ := c.DecimalValue()
			assert.True(t, d.Equal(decimal.RequireFromString(tt.want)), d.String())
		})
	}

	// free text in the same shape stays text outside raw reads
	assert.Equal(t, KindText, Normalize("1E-05").Kind())
}

func TestFormatNumFmt(t *testing.T) {
	assert.Equal(t, 3, FormatThousands.NumFmt())
	assert.Equal(t, 4, FormatThousandsDecimal.NumFmt())
	assert.Equal(t, FormatThousandsDecimal, FormatFromNumFmt(4))
	assert.Equal(t, FormatNone, FormatFromNumFmt(0))
	assert.Equal(t, "#,##0.00", FormatThousandsDecimal.Code())
}

package extractor

import (
	"context"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/report-tracker/internal/domain/report/extractor/pdftest"
)

func glyphs(x, y, size, advance float64, s string) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	for _, ch := range s {
		out = append(out, pdf.Text{FontSize: size, X: x, Y: y, W: advance, S: string(ch)})
		x += advance
	}
	return out
}

func TestJoinGlyphs_WithWidths(t *testing.T) {
	var in []pdf.Text
	in = append(in, glyphs(50, 700, 10, 6, "Austria")...)
	in = append(in, glyphs(200, 700, 10, 5, "1,234")...)
	in = append(in, glyphs(50, 685, 10, 6, "Belgium")...)

	runs := joinGlyphs(in)
	require.Len(t, runs, 3)
	assert.Equal(t, run{X: 50, Y: 700, Width: 42, Size: 10, Text: "Austria"}, runs[0])
	assert.Equal(t, run{X: 200, Y: 700, Width: 25, Size: 10, Text: "1,234"}, runs[1])
	assert.Equal(t, "Belgium", runs[2].Text)
}

func TestJoinGlyphs_WithoutWidths(t *testing.T) {
	// fonts without a width table do not advance between glyphs
	in := glyphs(50, 700, 10, 0, "Sep 2025")
	in = append(in, glyphs(300, 700, 10, 0, "12")...)

	runs := joinGlyphs(in)
	require.Len(t, runs, 2)
	assert.Equal(t, run{X: 50, Y: 700, Width: 40, Size: 10, Text: "Sep 2025"}, runs[0])
	assert.Equal(t, run{X: 300, Y: 700, Width: 10, Size: 10, Text: "12"}, runs[1])
}

func TestJoinGlyphs_Breaks(t *testing.T) {
	var in []pdf.Text
	in = append(in, glyphs(50, 700, 10, 5, "ab")...)
	in = append(in, pdf.Text{FontSize: 10, X: 60, Y: 700, S: "\n"}) // end of TJ
	in = append(in, glyphs(60, 700, 10, 5, "cd")...)
	in = append(in, glyphs(70, 700, 8, 4, "e")...) // smaller size
	in = append(in, glyphs(74, 690, 8, 4, "f")...) // new baseline
	in = append(in, glyphs(90, 690, 8, 4, "g")...) // gap
	in = append(in, glyphs(10, 690, 8, 4, "h")...) // moved back

	var texts []string
	for _, r := range joinGlyphs(in) {
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{"ab", "cd", "e", "f", "g", "h"}, texts)
}

func TestJoinGlyphs_Empty(t *testing.T) {
	assert.Empty(t, joinGlyphs(nil))
	assert.Empty(t, joinGlyphs([]pdf.Text{{S: "\n"}}))
}

// toUnicodeFont maps codes 1 and 2 to "A" and "é" and gives them widths.
const toUnicodeFont = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica " +
	"/FirstChar 1 /LastChar 2 /Widths [600 500] /ToUnicode 4 0 R >>"

const toUnicodeCMap = "/CIDInit /ProcSet findresource begin\n" +
	"12 dict begin\n" +
	"begincmap\n" +
	"1 begincodespacerange <00> <FF> endcodespacerange\n" +
	"2 beginbfchar <01> <0041> <02> <00E9> endbfchar\n" +
	"endcmap\n" +
	"CMapName currentdict /CMap defineresource pop\n" +
	"end\nend"

func TestExtract_DecodesToUnicodeFonts(t *testing.T) {
	content := "BT /F1 10 Tf 1 0 0 1 50 800 Tm <0102> Tj ET\n" +
		"BT /F1 10 Tf 1 0 0 1 200 800 Tm <01> Tj ET\n" +
		"BT /F1 10 Tf 1 0 0 1 50 785 Tm <02> Tj ET\n" +
		"BT /F1 10 Tf 1 0 0 1 200 785 Tm <0101> Tj ET\n"
	data := pdftest.BuildWith(toUnicodeFont, []string{pdftest.Stream(toUnicodeCMap)}, content)

	doc, err := openDocument(data)
	require.NoError(t, err)
	runs, err := doc.runs(1)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run{X: 50, Y: 800, Width: 11, Size: 10, Text: "Aé"}, runs[0])

	pages, err := newExtractor().Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.False(t, pages[0].Fallback)
	assert.Equal(t, Table{{"Aé", "A"}, {"é", "AA"}}, pages[0].Tables[0])
}

func TestDocument_MissingPage(t *testing.T) {
	doc, err := openDocument(pdftest.Build(textPage()))
	require.NoError(t, err)
	_, err = doc.runs(5)
	assert.Error(t, err)
}

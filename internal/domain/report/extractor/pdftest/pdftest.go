// Package pdftest writes small uncompressed PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Helvetica is the /F1 font Build uses.
const Helvetica = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

// Build writes a minimal PDF with one page per content stream, using
// Helvetica as /F1.
func Build(contents ...string) []byte {
	return BuildWith(Helvetica, nil, contents...)
}

// BuildWith writes a minimal PDF whose /F1 is the font dictionary font.
// Objects are numbered from 4 in order and may be referenced from font,
// e.g. "4 0 R" for the first.
func BuildWith(font string, objects []string, contents ...string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	first := 4 + len(objects)
	kids := make([]string, len(contents))
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", first+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents)))
	obj(font)
	for _, o := range objects {
		obj(o)
	}
	for i, content := range contents {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", first+2*i+1))
		obj(Stream(content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Stream wraps data in an uncompressed stream object body.
func Stream(data string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
}

// TextAt places one string at an absolute position in 10pt.
func TextAt(x, y float64, s string) string {
	return fmt.Sprintf("BT /F1 10 Tf 1 0 0 1 %g %g Tm (%s) Tj ET\n", x, y, s)
}

// Rows lays out rows of cells from (x, y), 15pt apart, columns at the given offsets.
func Rows(y float64, columns []float64, rows ...[]string) string {
	var b strings.Builder
	for i, row := range rows {
		for j, v := range row {
			if v == "" || j >= len(columns) {
				continue
			}
			b.WriteString(TextAt(columns[j], y-float64(i)*15, v))
		}
	}
	return b.String()
}

package extractor

import (
	"github.com/FACorreiaa/report-tracker/internal/domain/report/extractor/pdftest"
)

var buildPDF = pdftest.Build

// tablePage is a caption, a section label and a three-column table.
func tablePage() string {
	return pdftest.TextAt(50, 800, "Registrations by market") +
		pdftest.TextAt(50, 780, "MONTHLY") +
		pdftest.Rows(760, []float64{50, 200, 300},
			[]string{"Country", "Sep 2025", "Sep 2024"},
			[]string{"Austria", "1,234", "1,100"},
			[]string{"Belgium", "-5.5", "12"},
		)
}

func textPage() string {
	return pdftest.TextAt(50, 800, "Press release") + pdftest.TextAt(50, 780, "Brussels, 21 October 2025")
}

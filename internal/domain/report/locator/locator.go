// Package locator guesses report URLs from the source's file naming
// conventions. It performs no I/O.
package locator

import (
	"fmt"
	"strings"
	"time"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// DefaultBaseURL is the publisher's site root.
const DefaultBaseURL = "https://www.acea.auto"

// RevisedSuffix marks a corrected re-publication of a report.
const RevisedSuffix = "_rev"

// Period is one publication slot of a report family.
type Period struct {
	Token    string     // file name fragment, e.g. "September", "Q3", "Full-year"
	Title    string     // human readable label
	EndMonth time.Month // the period is closed once this month has passed
}

// Template describes the file naming of one category.
type Template struct {
	Family  string   // file name family, e.g. "car"
	Periods []Period // in publication order within a year
}

// Candidate is one guessed report location.
type Candidate struct {
	URL       string // document URL
	SourceURL string // page the document was found on; empty for guessed URLs
	Category  report.Category
	Period    string
	Year      int
	Revised   bool
	FileName  string
	Title     string
}

// Locator builds candidate URLs from templates.
type Locator struct {
	baseURL   string
	templates map[report.Category]Template
}

// New creates a locator rooted at baseURL using the default templates.
func New(baseURL string) *Locator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Locator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		templates: DefaultTemplates(),
	}
}

// WithTemplate overrides the template for one category.
func (l *Locator) WithTemplate(c report.Category, t Template) *Locator {
	l.templates[c] = t
	return l
}

// DefaultTemplates returns the naming used by the two report families:
// monthly passenger car releases and quarterly commercial vehicle releases.
func DefaultTemplates() map[report.Category]Template {
	months := make([]Period, 0, 14)
	for m := time.January; m <= time.December; m++ {
		months = append(months, Period{Token: m.String(), Title: m.String(), EndMonth: m})
		if m == time.June {
			months = append(months, firstHalf())
		}
	}
	months = append(months, fullYear())

	return map[report.Category]Template{
		report.CategoryPassenger: {
			Family:  "car",
			Periods: months,
		},
		report.CategoryCommercial: {
			Family: "commercial_vehicle",
			Periods: []Period{
				{Token: "Q1", Title: "Q1", EndMonth: time.March},
				{Token: "Q2", Title: "Q2", EndMonth: time.June},
				firstHalf(),
				{Token: "Q3", Title: "Q3", EndMonth: time.September},
				{Token: "Q4", Title: "Q4", EndMonth: time.December},
				fullYear(),
			},
		},
	}
}

func firstHalf() Period {
	return Period{Token: "first-half", Title: "First half", EndMonth: time.June}
}

func fullYear() Period {
	return Period{Token: "Full-year", Title: "Full year", EndMonth: time.December}
}

// Candidates returns the candidates for category as of now: closed periods of
// the current year newest first, then every period of the prior year, each
// regular candidate followed by its revised variant.
func (l *Locator) Candidates(now time.Time, category report.Category) []Candidate {
	tpl, ok := l.templates[category]
	if !ok {
		return nil
	}

	out := make([]Candidate, 0, 2*2*len(tpl.Periods))
	for _, year := range []int{now.Year(), now.Year() - 1} {
		for i := len(tpl.Periods) - 1; i >= 0; i-- {
			p := tpl.Periods[i]
			if !closed(now, year, p.EndMonth) {
				continue
			}
			out = append(out,
				l.candidate(category, tpl.Family, p, year, false),
				l.candidate(category, tpl.Family, p, year, true),
			)
		}
	}
	return out
}

// URLs returns only the candidate URLs, in the same order as Candidates.
func (l *Locator) URLs(now time.Time, category report.Category) []string {
	cands := l.Candidates(now, category)
	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.URL
	}
	return urls
}

func (l *Locator) candidate(category report.Category, family string, p Period, year int, revised bool) Candidate {
	suffix := ""
	title := fmt.Sprintf("%s %s %d", category.Label(), p.Title, year)
	if revised {
		suffix = RevisedSuffix
		title += " (revised)"
	}
	name := fmt.Sprintf("Press_release_%s_registrations_%s_%d%s.pdf", family, p.Token, year, suffix)
	return Candidate{
		URL:      l.baseURL + "/files/" + name,
		Category: category,
		Period:   p.Token,
		Year:     year,
		Revised:  revised,
		FileName: name,
		Title:    title,
	}
}

// closed reports whether a period ending in endMonth of year is over at now.
func closed(now time.Time, year int, endMonth time.Month) bool {
	if year < now.Year() {
		return true
	}
	return year == now.Year() && endMonth < now.Month()
}

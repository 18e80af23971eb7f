package report

import "errors"

// Pipeline error taxonomy. Stages wrap these so callers can classify
// outcomes with errors.Is.
var (
	// ErrNotFound: the candidate does not exist (HTTP 404), or a lookup found nothing.
	ErrNotFound = errors.New("not found")

	// ErrContentMismatch: the response body is not a PDF.
	ErrContentMismatch = errors.New("content is not a PDF")

	// ErrTransient: network or server error that persisted through every retry.
	ErrTransient = errors.New("transient fetch error")

	// ErrUnreadablePDF: the bytes cannot be parsed as a PDF document.
	ErrUnreadablePDF = errors.New("unreadable PDF")

	// ErrConversionFailure: the PDF could not be turned into a spreadsheet.
	ErrConversionFailure = errors.New("conversion failed")

	// ErrConflict: the report is already registered (dedup race lost or duplicate insert).
	ErrConflict = errors.New("report already registered")
)

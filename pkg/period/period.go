// Package period holds the reporting window shared by the finance, ads and
// analytics contracts.
package period

import (
	"errors"
	"fmt"
	"time"
)

// MaxSpan is the longest window any provider is asked to report on.
const MaxSpan = 366 * 24 * time.Hour

// DateLayout is the calendar date format upstream reporting APIs accept.
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned for an unusable reporting window.
var ErrInvalidRange = errors.New("invalid period")

// Range is a half-open reporting window [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects zero bounds, an End that is not after Start and windows
// longer than MaxSpan.
func (r Range) Validate() error {
	switch {
	case r.Start.IsZero() || r.End.IsZero():
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	case !r.End.After(r.Start):
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange, r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	case r.End.Sub(r.Start) > MaxSpan:
		return fmt.Errorf("%w: span %s exceeds %s", ErrInvalidRange, r.End.Sub(r.Start), MaxSpan)
	}
	return nil
}

// LastDays returns the n whole UTC days before the day containing now.
func LastDays(n int, now time.Time) Range {
	end := now.UTC().Truncate(24 * time.Hour)
	return Range{Start: end.AddDate(0, 0, -n), End: end}
}

// Days returns the number of calendar days the window touches.
func (r Range) Days() int {
	if !r.End.After(r.Start) {
		return 0
	}
	start := r.Start.UTC().Truncate(24 * time.Hour)
	return int((r.End.UTC().Sub(start) + 24*time.Hour - 1) / (24 * time.Hour))
}

// Dates formats the window as inclusive calendar dates, the form GA4,
// Google Ads and the Meta Graph API expect.
func (r Range) Dates() (since, until string) {
	last := r.End.Add(-time.Nanosecond)
	return r.Start.UTC().Format(DateLayout), last.UTC().Format(DateLayout)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	since, until := r.Dates()
	return since + ".." + until
}

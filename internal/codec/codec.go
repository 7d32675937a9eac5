// Package codec converts the event collection to and from the portable
// backup formats: a JSON array of events and a minimal iCalendar document.
package codec

import (
	"fmt"
	"time"
)

const (
	KindJSON = "json"
	KindICS  = "ics"
)

// FormatError reports an import payload that could not be decoded.
type FormatError struct {
	Format string // "json" or "ics"
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Format, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Format, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Filename is the suggested download name for an export made at now.
func Filename(kind string, now time.Time) string {
	return "daycounter-events-" + now.UTC().Format("2006-01-02") + "." + kind
}

package sqlite

import (
	"fmt"
	"time"
)

// timestampLayouts lists the forms profiles.updated_at comes back in: the raw
// CURRENT_TIMESTAMP text, or the driver's RFC 3339 rendering when the column
// is decoded as a TIMESTAMP and scanned into a string.
var timestampLayouts = []string{
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// parseTime reads a profile timestamp as UTC unless it names a zone.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized layout", s)
}

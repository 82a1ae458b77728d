package streak

import (
	"fmt"
	"strings"
	"time"

	"fitplay.app/gametime/internal/common"
)

// Accepted activity date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseActivityDate turns raw into a calendar date at UTC midnight.
// Empty input means today. A date-time keeps the calendar day as written,
// the zone offset is not applied. Dates after today are rejected: a day
// can only be counted once it has started.
func ParseActivityDate(raw string, today time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return today, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if date.After(today) {
			return time.Time{}, fmt.Errorf("%w: activity date %s is in the future", common.ErrInvalidInput, date.Format("2006-01-02"))
		}
		return date, nil
	}
	return time.Time{}, fmt.Errorf("%w: activity date %q is not an ISO date or date-time", common.ErrInvalidInput, raw)
}

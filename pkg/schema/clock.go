package schema

import (
	"fmt"
	"strings"
	"time"
)

// clockLayouts are the time-of-day shapes found in stored shifts. Older
// backups carry whatever the browser locale printed, e.g. "02:05 PM".
var clockLayouts = []string{
	ClockLayout,
	"15:04:05",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
}

var (
	wideSpace = strings.NewReplacer("\u202f", " ", "\u00a0", " ")
	meridiem  = strings.NewReplacer("a. m.", "am", "p. m.", "pm", "a.m.", "am", "p.m.", "pm")
)

// ParseClock reads a time of day in any of the accepted shapes. Only the
// hour and minute of the result are meaningful.
func ParseClock(s string) (time.Time, error) {
	norm := strings.ToUpper(meridiem.Replace(wideSpace.Replace(strings.ToLower(strings.TrimSpace(s)))))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", s)
}

package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxRepeatWeeks caps how far a weekly repetition may reach.
const MaxRepeatWeeks = 12

// ExpandWeekly returns start plus the same weekday and wall clock for the
// following weeks, weeks occurrences in total.
func ExpandWeekly(start time.Time, weeks int) ([]time.Time, error) {
	if weeks <= 1 {
		return []time.Time{start}, nil
	}
	if weeks > MaxRepeatWeeks {
		return nil, fmt.Errorf("repeat of %d weeks exceeds maximum of %d", weeks, MaxRepeatWeeks)
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   weeks,
		Dtstart: start,
	})
	if err != nil {
		return nil, fmt.Errorf("build weekly rule: %w", err)
	}
	return r.All(), nil
}

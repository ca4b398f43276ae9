package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseDay resolves a calendar day to midnight in loc. It accepts
// YYYY-MM-DD, today, tomorrow, yesterday, +Nd/-Nd, +Nw/-Nw and weekday
// names, which mean the next such day (today included).
func ParseDay(input string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	if wd, ok := weekdays[s]; ok {
		diff := (int(wd) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, diff), nil
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign := 1
		if s[0] == '-' {
			sign = -1
		}
		raw := s[1:]
		unit := 1
		switch {
		case strings.HasSuffix(raw, "d"):
			raw = strings.TrimSuffix(raw, "d")
		case strings.HasSuffix(raw, "w"):
			raw = strings.TrimSuffix(raw, "w")
			unit = 7
		default:
			return time.Time{}, fmt.Errorf("invalid relative date %q: want +Nd or +Nw", input)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative date %q: want +Nd or +Nw", input)
		}
		return today.AddDate(0, 0, sign*n*unit), nil
	}
	if ts, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unsupported date %q: want YYYY-MM-DD, today, +Nd or a weekday", input)
}

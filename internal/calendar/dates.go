package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// SlotLength is the granularity of every availability slot.
	SlotLength = 30 * time.Minute

	// GridStartHour and GridEndHour bound the editable availability grid.
	GridStartHour = 6
	GridEndHour   = 22

	keySep = "|"
)

// FormatDate renders the calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SlotKey identifies one half-hour slot on one calendar day.
func SlotKey(day time.Time, label string) string {
	return FormatDate(day) + keySep + label
}

// ParseSlotKey splits a key built by SlotKey back into its date and time label.
func ParseSlotKey(key string) (string, string, error) {
	date, label, ok := strings.Cut(key, keySep)
	if !ok {
		return "", "", fmt.Errorf("invalid slot key: %q", key)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", fmt.Errorf("invalid slot key date: %q", key)
	}
	if _, err := time.Parse(TimeLayout, label); err != nil {
		return "", "", fmt.Errorf("invalid slot key time: %q", key)
	}
	return date, label, nil
}

// BuildTimeSlots lists HH:MM labels every 30 minutes over [startHour, endHour).
func BuildTimeSlots(startHour, endHour int) []string {
	if endHour <= startHour {
		return nil
	}
	out := make([]string, 0, (endHour-startHour)*2)
	for h := startHour; h < endHour; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return out
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate reads a YYYY-MM-DD value as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// SlotStart combines a day and an HH:MM label into an instant in the day's location.
func SlotStart(day time.Time, label string) (time.Time, error) {
	clock, err := time.Parse(TimeLayout, strings.TrimSpace(label))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time label %q: want HH:MM", label)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

// TimeLabel renders the wall clock of t as HH:MM.
func TimeLabel(t time.Time) string {
	return t.Format(TimeLayout)
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween counts calendar days from a to b, ignoring wall clock and DST.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return FormatDate(a) == FormatDate(b)
}

// Package clock holds the calendar arithmetic used by the booking engine.
//
// Every instant lives on a single canonical UTC clock. A date is the UTC
// midnight that opens the calendar day; wall-clock times are "HH:MM" strings.
package clock

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("invalid date format")
	ErrInvalidTime = errors.New("invalid time format")
)

var hhmmPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ParseDate parses YYYY-MM-DD into the UTC midnight of that day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ValidHHMM reports whether s is a two-digit hour 00-23 and minute 00-59.
func ValidHHMM(s string) bool {
	_, err := minutesOf(s)
	return err == nil
}

func minutesOf(s string) (int, error) {
	if !hhmmPattern.MatchString(s) {
		return 0, ErrInvalidTime
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if h > 23 || m > 59 {
		return 0, ErrInvalidTime
	}
	return h*60 + m, nil
}

// Combine places an HH:MM wall-clock time on the given date.
func Combine(date time.Time, hhmm string) (time.Time, error) {
	mins, err := minutesOf(hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine %q: %w", hhmm, err)
	}
	return StartOfDay(date).Add(time.Duration(mins) * time.Minute), nil
}

// MustCombine is Combine for values already validated at the boundary.
func MustCombine(date time.Time, hhmm string) time.Time {
	t, err := Combine(date, hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// Overlaps tests half-open intervals [aStart, aEnd) and [bStart, bEnd).
// Touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func FormatHHMM(t time.Time) string {
	return t.UTC().Format(ClockLayout)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the [00:00, 23:59] bounds used to select a day's appointments.
func DayWindow(date time.Time) (time.Time, time.Time) {
	start := StartOfDay(date)
	return start, start.Add(23*time.Hour + 59*time.Minute)
}

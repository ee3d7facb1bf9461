package clock

import (
	"fmt"
	"time"
)

// Clock computes zone-aware wall clock values and week anchors for the
// schedule engine. Weekdays are numbered 0 (Monday) through 6 (Sunday),
// matching the layout of weekly schedule schemas.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New builds a Clock for the given IANA zone name. An unknown zone is a
// startup configuration error.
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed returns a Clock whose Now is pinned to the provided instant.
// Intended for tests.
func NewFixed(now time.Time) *Clock {
	return &Clock{loc: now.Location(), now: func() time.Time { return now }}
}

// Location returns the configured club time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the club time zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns midnight of the current day in the club time zone.
func (c *Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// MondayOfCurrentWeek returns midnight of the Monday of the week containing
// "now".
func (c *Clock) MondayOfCurrentWeek() time.Time {
	today := c.Today()
	// time.Weekday numbers Sunday as 0; shift so Monday is 0.
	offset := (int(today.Weekday()) + 6) % 7
	return today.AddDate(0, 0, -offset)
}

// MondayOfNextWeek returns midnight of the Monday following the current week.
func (c *Clock) MondayOfNextWeek() time.Time {
	return c.MondayOfCurrentWeek().AddDate(0, 0, 7)
}

// Materialize composes a concrete occurrence time from a weekday and a
// time of day ("15:04" or "15:04:05"), anchored to the current week.
func (c *Clock) Materialize(weekday int, timeOfDay string) (time.Time, error) {
	if weekday < 0 || weekday > 6 {
		return time.Time{}, fmt.Errorf("weekday %d out of range 0..6", weekday)
	}
	hour, minute, sec, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	monday := c.MondayOfCurrentWeek()
	day := monday.AddDate(0, 0, weekday)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, sec, 0, c.loc), nil
}

// NormalizeTimeOfDay validates a time-of-day string and canonicalises it to
// "15:04:05" form, the format schema records are stored in.
func NormalizeTimeOfDay(timeOfDay string) (string, error) {
	hour, minute, sec, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, sec), nil
}

func parseTimeOfDay(raw string) (hour, minute, sec int, err error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, parseErr := time.Parse(layout, raw); parseErr == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid time of day %q", raw)
}

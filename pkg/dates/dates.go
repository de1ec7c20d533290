package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsableDate is returned when a value is neither an absolute nor a relative date.
var ErrUnparsableDate = errors.New("unparsable date")

// Resolver turns a date string into an absolute timestamp in a team's timezone.
type Resolver interface {
	Resolve(value string, loc *time.Location) (time.Time, error)
}

var (
	// absolute layouts with an explicit offset
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
	}

	// absolute layouts interpreted in the team timezone
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}

	relativePattern = regexp.MustCompile(`^-?(\d+)?([hdwmqy])(Start|End)?$`)
)

// Parser resolves absolute ISO-8601 dates first and falls back to relative
// expressions like "-7d", "-24h", "-1mStart" or "dStart".
type Parser struct {
	// Now returns the reference time for relative dates. Defaults to time.Now.
	Now func() time.Time
}

// NewParser returns a Parser using the wall clock.
func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

// Resolve implements Resolver.
func (p *Parser) Resolve(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	value = strings.TrimSpace(value)
	if t, ok := parseAbsolute(value, loc); ok {
		return t, nil
	}

	if t, ok := p.parseRelative(value, loc); ok {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableDate, value)
}

func parseAbsolute(value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func (p *Parser) parseRelative(value string, loc *time.Location) (time.Time, bool) {
	m := relativePattern.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, false
	}

	n := 0
	if m[1] != "" {
		var err error
		if n, err = strconv.Atoi(m[1]); err != nil {
			return time.Time{}, false
		}
	}
	unit, position := m[2], m[3]

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now().In(loc)

	switch unit {
	case "h":
		t = t.Add(-time.Duration(n) * time.Hour)
		hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
		switch position {
		case "Start":
			t = hour
		case "End":
			t = hour.Add(time.Hour - time.Nanosecond)
		}
		return t, true

	case "d":
		t = t.AddDate(0, 0, -n)

	case "w":
		t = t.AddDate(0, 0, -7*n)

	case "m":
		t = addMonths(t, -n)
		switch position {
		case "Start":
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		case "End":
			t = time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, loc)
		}

	case "q":
		t = addMonths(t, -3*n)
		if position != "" {
			first := time.Month((int(t.Month())-1)/3*3 + 1)
			if position == "Start" {
				t = time.Date(t.Year(), first, 1, 0, 0, 0, 0, loc)
			} else {
				t = time.Date(t.Year(), first+3, 0, 0, 0, 0, 0, loc)
			}
		}

	case "y":
		t = addMonths(t, -12*n)
		switch position {
		case "Start":
			t = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
		case "End":
			t = time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, loc)
		}
	}

	// everything coarser than an hour is day aligned
	if position == "End" {
		return endOfDay(t), true
	}
	return startOfDay(t), true
}

// addMonths moves by whole months, clamping the day to the target month's length
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)

	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

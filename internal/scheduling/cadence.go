package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CadenceType string

const (
	CadenceDaily    CadenceType = "daily"
	CadenceWeekdays CadenceType = "weekdays"
	CadenceWeekends CadenceType = "weekends"
	CadenceCustom   CadenceType = "custom"
)

var (
	ErrUnknownCadence   = errors.New("unknown cadence type")
	ErrNoDaysSelected   = errors.New("no days selected")
	ErrInvalidTimeOfDay = errors.New("time must be HH:MM")
	ErrInvalidWeekday   = errors.New("days must be between 0 (Sunday) and 6 (Saturday)")
)

// Cadence is a recurring rule: a set of weekdays plus a wall-clock time.
type Cadence struct {
	Type CadenceType
	Time string // HH:MM, 24h
	Days []time.Weekday
}

// AllowedDays expands the cadence into its weekday set.
func (c Cadence) AllowedDays() (map[time.Weekday]bool, error) {
	allowed := make(map[time.Weekday]bool, 7)

	switch c.Type {
	case CadenceDaily:
		for d := time.Sunday; d <= time.Saturday; d++ {
			allowed[d] = true
		}
	case CadenceWeekdays:
		for d := time.Monday; d <= time.Friday; d++ {
			allowed[d] = true
		}
	case CadenceWeekends:
		allowed[time.Saturday] = true
		allowed[time.Sunday] = true
	case CadenceCustom:
		if len(c.Days) == 0 {
			return nil, ErrNoDaysSelected
		}
		for _, d := range c.Days {
			if d < time.Sunday || d > time.Saturday {
				return nil, ErrInvalidWeekday
			}
			allowed[d] = true
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCadence, c.Type)
	}

	return allowed, nil
}

// Validate checks the weekday set and the time of day.
func (c Cadence) Validate() error {
	if _, err := c.AllowedDays(); err != nil {
		return err
	}
	_, _, err := ParseTimeOfDay(c.Time)
	return err
}

// ParseTimeOfDay parses "HH:MM" into hour and minute.
func ParseTimeOfDay(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, ErrInvalidTimeOfDay
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidTimeOfDay
	}

	return hour, minute, nil
}

// WeekdaysFromInts converts stored day numbers (0 = Sunday).
func WeekdaysFromInts(days []int64) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

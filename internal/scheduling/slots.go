package scheduling

import (
	"errors"
	"time"
)

// MaxSearchDays bounds the day-by-day walk for a single slot.
const MaxSearchDays = 365

var ErrNoSlotAvailable = errors.New("no valid slot within search window")

// Assignment pairs a batch item with the instant it was assigned.
type Assignment[T any] struct {
	Item T
	At   time.Time
}

// AssignSlots gives each item, in order, the next allowed slot that is
// strictly after now. The walk starts at midnight of startDate in startDate's
// location and moves to the day after each assigned slot, so no two items share
// a day. Days whose slot has already passed are skipped entirely.
//
// Horizon limits are not checked here.
func AssignSlots[T any](items []T, rule Cadence, startDate, now time.Time) ([]Assignment[T], error) {
	allowed, err := rule.AllowedDays()
	if err != nil {
		return nil, err
	}
	hour, minute, err := ParseTimeOfDay(rule.Time)
	if err != nil {
		return nil, err
	}

	loc := startDate.Location()
	cursor := startOfDay(startDate)
	assignments := make([]Assignment[T], 0, len(items))

	for _, item := range items {
		slot, ok := nextSlot(cursor, allowed, hour, minute, loc, now)
		if !ok {
			return nil, ErrNoSlotAvailable
		}
		assignments = append(assignments, Assignment[T]{Item: item, At: slot})
		cursor = startOfDay(slot).AddDate(0, 0, 1)
	}

	return assignments, nil
}

// PreviewSlots assigns n anonymous slots.
func PreviewSlots(n int, rule Cadence, startDate, now time.Time) ([]time.Time, error) {
	if n < 0 {
		n = 0
	}
	assigned, err := AssignSlots(make([]struct{}, n), rule, startDate, now)
	if err != nil {
		return nil, err
	}

	slots := make([]time.Time, len(assigned))
	for i, a := range assigned {
		slots[i] = a.At
	}
	return slots, nil
}

func nextSlot(cursor time.Time, allowed map[time.Weekday]bool, hour, minute int, loc *time.Location, now time.Time) (time.Time, bool) {
	for i := 0; i < MaxSearchDays; i++ {
		day := cursor.AddDate(0, 0, i)
		if !allowed[day.Weekday()] {
			continue
		}
		slot := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if slot.After(now) {
			return slot, true
		}
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

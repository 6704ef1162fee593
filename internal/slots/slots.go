package slots

import (
	"errors"
	"time"
)

// Wire formats for slot identifiers. Both are used verbatim as ledger keys,
// so zero padding matters: "05_03_2025", "10:00 AM", "03:30 PM".
const (
	DateKeyLayout = "02_01_2006"
	TimeLayout    = "03:04 PM"
)

// Consultation hours are fixed configuration: every day 10:00-16:00 in
// 30-minute steps, bookable from tomorrow up to HorizonDays out.
const (
	HorizonDays  = 90
	openingHour  = 10
	closingHour  = 16
	slotInterval = 30 * time.Minute
)

var ErrInvalidSlot = errors.New("invalid slot")

// Day is one calendar day in the booking horizon. Times is never nil: a
// fully booked day keeps an empty list so the horizon stays positionally
// stable for date-tab UIs.
type Day struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

// Calendar returns the bookable slots for each day of the horizon, skipping
// times present in booked (keyed by DateKeyLayout, values in TimeLayout).
// Pure view over booked; callers must recompute after any ledger change.
func Calendar(booked map[string][]string, now time.Time) []Day {
	days := make([]Day, 0, HorizonDays)
	for i := 1; i <= HorizonDays; i++ {
		day := now.AddDate(0, 0, i)
		key := day.Format(DateKeyLayout)

		taken := make(map[string]struct{}, len(booked[key]))
		for _, t := range booked[key] {
			taken[t] = struct{}{}
		}

		times := make([]string, 0, slotsPerDay())
		start := time.Date(day.Year(), day.Month(), day.Day(), openingHour, 0, 0, 0, day.Location())
		end := time.Date(day.Year(), day.Month(), day.Day(), closingHour, 0, 0, 0, day.Location())
		for t := start; t.Before(end); t = t.Add(slotInterval) {
			formatted := t.Format(TimeLayout)
			if _, ok := taken[formatted]; ok {
				continue
			}
			times = append(times, formatted)
		}
		days = append(days, Day{Date: key, Times: times})
	}
	return days
}

// DateKey formats t as a ledger date key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// Parse resolves a (dateKey, timeOfDay) pair into the slot's start time.
func Parse(dateKey, timeOfDay string) (time.Time, error) {
	day, err := time.ParseInLocation(DateKeyLayout, dateKey, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidSlot
	}
	clock, err := time.Parse(TimeLayout, timeOfDay)
	if err != nil {
		return time.Time{}, ErrInvalidSlot
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
}

// ValidateBookable rejects slots that are malformed, off the 30-minute
// grid, outside consultation hours, or outside the rolling horizon.
func ValidateBookable(dateKey, timeOfDay string, now time.Time) error {
	slot, err := Parse(dateKey, timeOfDay)
	if err != nil {
		return err
	}
	// Round-trip so "5_3_2025" or "10:00 am" can't alias a canonical key.
	if slot.Format(DateKeyLayout) != dateKey || slot.Format(TimeLayout) != timeOfDay {
		return ErrInvalidSlot
	}
	if slot.Hour() < openingHour || slot.Hour() >= closingHour {
		return ErrInvalidSlot
	}
	if slot.Minute()%30 != 0 {
		return ErrInvalidSlot
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	slotDay := time.Date(slot.Year(), slot.Month(), slot.Day(), 0, 0, 0, 0, now.Location())
	if !slotDay.After(today) {
		return ErrInvalidSlot
	}
	if slotDay.After(today.AddDate(0, 0, HorizonDays)) {
		return ErrInvalidSlot
	}
	return nil
}

func slotsPerDay() int {
	return int(time.Duration(closingHour-openingHour) * time.Hour / slotInterval)
}

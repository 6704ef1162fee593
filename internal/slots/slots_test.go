package slots

import (
	"reflect"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func TestCalendarEmptyLedger(t *testing.T) {
	days := Calendar(nil, now)

	if len(days) != HorizonDays {
		t.Fatalf("expected %d days, got %d", HorizonDays, len(days))
	}
	if days[0].Date != "05_03_2025" {
		t.Fatalf("expected horizon to start tomorrow (05_03_2025), got %s", days[0].Date)
	}
	if len(days[0].Times) != 12 {
		t.Fatalf("expected 12 slots per empty day, got %d", len(days[0].Times))
	}
	if days[0].Times[0] != "10:00 AM" {
		t.Fatalf("expected first slot 10:00 AM, got %s", days[0].Times[0])
	}
	if days[0].Times[11] != "03:30 PM" {
		t.Fatalf("expected last slot 03:30 PM, got %s", days[0].Times[11])
	}
}

func TestCalendarExcludesBooked(t *testing.T) {
	booked := map[string][]string{
		"05_03_2025": {"10:00 AM", "03:30 PM"},
	}
	days := Calendar(booked, now)

	if len(days[0].Times) != 10 {
		t.Fatalf("expected 10 remaining slots, got %d", len(days[0].Times))
	}
	for _, slot := range days[0].Times {
		if slot == "10:00 AM" || slot == "03:30 PM" {
			t.Fatalf("booked slot %s still offered", slot)
		}
	}
	// Other days untouched.
	if len(days[1].Times) != 12 {
		t.Fatalf("expected 12 slots on 06_03_2025, got %d", len(days[1].Times))
	}
}

func TestCalendarKeepsFullyBookedDay(t *testing.T) {
	all := make([]string, 0, 12)
	for _, d := range Calendar(nil, now)[:1] {
		all = append(all, d.Times...)
	}
	days := Calendar(map[string][]string{"05_03_2025": all}, now)

	if days[0].Date != "05_03_2025" {
		t.Fatalf("fully booked day dropped from horizon")
	}
	if len(days[0].Times) != 0 {
		t.Fatalf("expected empty slot list, got %v", days[0].Times)
	}
	if days[0].Times == nil {
		t.Fatal("expected empty list, not nil, so JSON stays [] for the date tabs")
	}
}

func TestCalendarIsIdempotent(t *testing.T) {
	booked := map[string][]string{"10_03_2025": {"11:30 AM"}}
	first := Calendar(booked, now)
	second := Calendar(booked, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two calls without ledger mutation produced different calendars")
	}
}

func TestDateKeyZeroPadding(t *testing.T) {
	got := DateKey(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	if got != "05_03_2025" {
		t.Fatalf("expected 05_03_2025, got %s", got)
	}
}

func TestValidateBookable(t *testing.T) {
	cases := []struct {
		name string
		date string
		time string
		ok   bool
	}{
		{"first slot tomorrow", "05_03_2025", "10:00 AM", true},
		{"last slot tomorrow", "05_03_2025", "03:30 PM", true},
		{"today not bookable", "04_03_2025", "10:00 AM", false},
		{"past date", "01_01_2025", "10:00 AM", false},
		{"beyond horizon", "05_07_2025", "10:00 AM", false},
		{"before opening", "05_03_2025", "09:30 AM", false},
		{"at closing", "05_03_2025", "04:00 PM", false},
		{"off grid", "05_03_2025", "10:15 AM", false},
		{"unpadded date", "5_3_2025", "10:00 AM", false},
		{"lowercase meridiem", "05_03_2025", "10:00 am", false},
		{"garbage date", "2025-03-05", "10:00 AM", false},
		{"garbage time", "05_03_2025", "ten", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBookable(tc.date, tc.time, now)
			if tc.ok && err != nil {
				t.Fatalf("expected bookable, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestHorizonEdgeIsBookable(t *testing.T) {
	last := Calendar(nil, now)[HorizonDays-1]
	if err := ValidateBookable(last.Date, last.Times[0], now); err != nil {
		t.Fatalf("last day of horizon should be bookable: %v", err)
	}
}

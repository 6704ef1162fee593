package model

import "testing"

func TestCanAccessVideo(t *testing.T) {
	cases := []struct {
		name      string
		paid      bool
		cancelled bool
		completed bool
		want      bool
	}{
		{"unpaid fresh booking", false, false, false, false},
		{"paid and live", true, false, false, true},
		{"paid then cancelled", true, true, false, false},
		{"paid then completed", true, false, true, false},
		{"cancelled and completed", true, true, true, false},
		{"unpaid cancelled", false, true, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Appointment{Paid: tc.paid, Cancelled: tc.cancelled, Completed: tc.completed}
			if got := a.CanAccessVideo(); got != tc.want {
				t.Fatalf("paid=%v cancelled=%v completed=%v: got %v, want %v",
					tc.paid, tc.cancelled, tc.completed, got, tc.want)
			}
		})
	}
}

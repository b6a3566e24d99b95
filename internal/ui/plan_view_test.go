package ui

import "testing"

func TestFormatInstant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2026-03-02T09:00:00Z", "Mon Mar 2 09:00"},
		{"2026-03-02T09:00:00+02:00", "Mon Mar 2 09:00"},
		{"not-a-timestamp", "not-a-timestamp"},
	}

	for _, tc := range tests {
		if got := formatInstant(tc.input); got != tc.want {
			t.Errorf("formatInstant(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMinuteClock(t *testing.T) {
	tests := []struct {
		minute int
		want   string
	}{
		{0, "00:00"},
		{570, "09:30"},
		{1439, "23:59"},
	}

	for _, tc := range tests {
		if got := minuteClock(tc.minute); got != tc.want {
			t.Errorf("minuteClock(%d) = %q, want %q", tc.minute, got, tc.want)
		}
	}
}

func TestWeekdayName(t *testing.T) {
	tests := []struct {
		weekday int
		want    string
	}{
		{0, "Sun"},
		{1, "Mon"},
		{6, "Sat"},
		{7, "day 7"},
	}

	for _, tc := range tests {
		if got := weekdayName(tc.weekday); got != tc.want {
			t.Errorf("weekdayName(%d) = %q, want %q", tc.weekday, got, tc.want)
		}
	}
}

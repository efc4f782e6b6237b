package model

import (
	"testing"
	"time"
)

func bakeryHours() OperatingHours {
	return OperatingHours{Open: "08:00", Close: "19:00"}
}

func instant(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2030-06-01 "+value)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestOperatingHoursValidate(t *testing.T) {
	tests := []struct {
		name    string
		hours   OperatingHours
		wantErr bool
	}{
		{"valid", bakeryHours(), false},
		{"bad open", OperatingHours{Open: "8am", Close: "19:00"}, true},
		{"bad close", OperatingHours{Open: "08:00", Close: "late"}, true},
		{"inverted", OperatingHours{Open: "19:00", Close: "08:00"}, true},
		{"equal", OperatingHours{Open: "08:00", Close: "08:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hours.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOperatingHoursWindowOn(t *testing.T) {
	open, close := bakeryHours().WindowOn(instant(t, "13:37"))
	if !open.Equal(instant(t, "08:00")) || !close.Equal(instant(t, "19:00")) {
		t.Errorf("window = %s - %s, want 08:00 - 19:00", open, close)
	}
}

func TestOperatingHoursContains(t *testing.T) {
	h := bakeryHours()
	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"inside", "09:00", "10:00", true},
		{"exactly the window", "08:00", "19:00", true},
		{"starts too early", "07:30", "09:00", false},
		{"ends too late", "18:30", "19:30", false},
		{"empty interval", "09:00", "09:00", false},
		{"inverted interval", "10:00", "09:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Contains(instant(t, tt.start), instant(t, tt.end))
			if got != tt.want {
				t.Errorf("Contains(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestOperatingHoursContainsRejectsOvernight(t *testing.T) {
	h := bakeryHours()
	start := instant(t, "18:00")
	end := instant(t, "09:00").AddDate(0, 0, 1)
	if h.Contains(start, end) {
		t.Error("interval spanning midnight must never fit the daily window")
	}
}

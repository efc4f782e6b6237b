package model

import (
	"fmt"
	"time"
)

// OperatingHours is the kitchen's daily open/close window in HH:MM form.
// The window applies identically to every calendar day; it is configured
// externally, never computed.
type OperatingHours struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// Validate checks that both bounds parse and that Open precedes Close.
func (h OperatingHours) Validate() error {
	open, err := parseClock(h.Open)
	if err != nil {
		return fmt.Errorf("open time: %w", err)
	}
	close, err := parseClock(h.Close)
	if err != nil {
		return fmt.Errorf("close time: %w", err)
	}
	if !open.Before(close) {
		return fmt.Errorf("open %s must precede close %s", h.Open, h.Close)
	}
	return nil
}

// WindowOn returns the open/close instants for the calendar day containing t.
func (h OperatingHours) WindowOn(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	open, _ := parseClock(h.Open)
	close, _ := parseClock(h.Close)
	loc := t.Location()
	start := time.Date(y, m, d, open.Hour(), open.Minute(), 0, 0, loc)
	end := time.Date(y, m, d, close.Hour(), close.Minute(), 0, 0, loc)
	return start, end
}

// Contains reports whether the whole [start,end) interval lies inside the
// operating window of a single day. Intervals spanning midnight never fit.
func (h OperatingHours) Contains(start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	open, close := h.WindowOn(start)
	return !start.Before(open) && !end.After(close)
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad clock value %q: %w", s, err)
	}
	return t, nil
}

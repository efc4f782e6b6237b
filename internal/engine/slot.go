package engine

import (
	"fmt"
	"time"

	"github.com/me/bakesched/pkg/model"
)

// searchStep is the granularity of the slot search walk.
const searchStep = time.Minute

// SlotFinder locates feasible start times for production steps under
// operating-hours and resource-capacity constraints. A step must fit
// entirely within a single day's kitchen window: overnight steps are
// rejected by design.
type SlotFinder struct {
	hours       model.OperatingHours
	horizonDays int
}

// NewSlotFinder creates a finder for the given kitchen window and search
// horizon in days.
func NewSlotFinder(hours model.OperatingHours, horizonDays int) *SlotFinder {
	return &SlotFinder{hours: hours, horizonDays: horizonDays}
}

// FindLatest returns the latest start such that [start, start+duration)
// ends no later than latestEnd, lies within one day's operating hours, and
// every category in resources can absorb one more reservation. It walks
// backward in one-minute steps, hopping whole days when the window closes,
// until the look-back horizon is exhausted.
func (f *SlotFinder) FindLatest(ledger *ResourceLedger, stepName string, resources []model.ResourceCategory, duration time.Duration, latestEnd time.Time) (time.Time, error) {
	if err := f.checkDuration(stepName, duration); err != nil {
		return time.Time{}, err
	}

	horizon := latestEnd.AddDate(0, 0, -f.horizonDays)
	end := latestEnd
	for !end.Before(horizon) {
		dayOpen, dayClose := f.hours.WindowOn(end)

		// Snap into the day's window, or hop to the previous day's close.
		if end.After(dayClose) {
			end = dayClose
			continue
		}
		start := end.Add(-duration)
		if start.Before(dayOpen) {
			_, prevClose := f.hours.WindowOn(end.AddDate(0, 0, -1))
			end = prevClose
			continue
		}

		if f.free(ledger, resources, start, end) {
			return start, nil
		}
		end = end.Add(-searchStep)
	}

	return time.Time{}, &model.NoFeasibleSlotError{
		Step:        stepName,
		Before:      latestEnd,
		HorizonDays: f.horizonDays,
	}
}

// FindEarliest is the forward counterpart of FindLatest: the earliest start
// at or after earliestStart whose whole interval is feasible, within the
// look-ahead horizon.
func (f *SlotFinder) FindEarliest(ledger *ResourceLedger, stepName string, resources []model.ResourceCategory, duration time.Duration, earliestStart time.Time) (time.Time, error) {
	if err := f.checkDuration(stepName, duration); err != nil {
		return time.Time{}, err
	}

	horizon := earliestStart.AddDate(0, 0, f.horizonDays)
	start := earliestStart
	for !start.After(horizon) {
		dayOpen, dayClose := f.hours.WindowOn(start)

		if start.Before(dayOpen) {
			start = dayOpen
			continue
		}
		end := start.Add(duration)
		if end.After(dayClose) {
			nextOpen, _ := f.hours.WindowOn(start.AddDate(0, 0, 1))
			start = nextOpen
			continue
		}

		if f.free(ledger, resources, start, end) {
			return start, nil
		}
		start = start.Add(searchStep)
	}

	return time.Time{}, &model.NoFeasibleSlotError{
		Step:        stepName,
		Before:      horizon,
		HorizonDays: f.horizonDays,
	}
}

// Fits reports whether the interval respects operating hours and capacity
// without committing anything. Used by the optimizer's local search.
func (f *SlotFinder) Fits(ledger *ResourceLedger, resources []model.ResourceCategory, start, end time.Time) bool {
	return f.hours.Contains(start, end) && f.free(ledger, resources, start, end)
}

func (f *SlotFinder) free(ledger *ResourceLedger, resources []model.ResourceCategory, start, end time.Time) bool {
	for _, cat := range resources {
		if !ledger.CanReserve(cat, start, end) {
			return false
		}
	}
	return true
}

func (f *SlotFinder) checkDuration(stepName string, duration time.Duration) error {
	if duration < searchStep {
		return fmt.Errorf("step %q: duration must be at least one minute, got %s", stepName, duration)
	}
	open, close := f.hours.WindowOn(time.Now().UTC())
	if duration > close.Sub(open) {
		return fmt.Errorf("step %q: duration %s exceeds the daily operating window", stepName, duration)
	}
	return nil
}

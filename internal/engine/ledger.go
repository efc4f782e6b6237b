package engine

import (
	"sort"
	"time"

	"github.com/me/bakesched/pkg/model"
)

// interval is a half-open busy window [Start, End).
type interval struct {
	Start time.Time
	End   time.Time
}

// ResourceLedger is the source of truth for "is resource R free during
// [t0,t1)?" during one scheduling run. Each resource category keeps its own
// start-sorted interval list, so there is no cross-resource coordination.
// A ledger is owned by a single run (or a single optimizer candidate) and is
// not safe for concurrent use.
type ResourceLedger struct {
	capacities map[model.ResourceCategory]int
	busy       map[model.ResourceCategory][]interval
}

// NewLedger creates an empty ledger with the given per-category capacities.
// Categories missing from the map default to capacity 1.
func NewLedger(capacities map[model.ResourceCategory]int) *ResourceLedger {
	caps := make(map[model.ResourceCategory]int, len(capacities))
	for cat, n := range capacities {
		caps[cat] = n
	}
	return &ResourceLedger{
		capacities: caps,
		busy:       make(map[model.ResourceCategory][]interval),
	}
}

// Clone returns an independent deep copy. Optimizer candidates each clone
// the baseline ledger so parallel evaluations never share mutable state.
func (l *ResourceLedger) Clone() *ResourceLedger {
	c := NewLedger(l.capacities)
	for cat, ivs := range l.busy {
		cp := make([]interval, len(ivs))
		copy(cp, ivs)
		c.busy[cat] = cp
	}
	return c
}

// Capacity returns the configured unit count for a category (default 1).
func (l *ResourceLedger) Capacity(cat model.ResourceCategory) int {
	if n, ok := l.capacities[cat]; ok {
		return n
	}
	return 1
}

// CountAt returns how many reservations of cat are active at instant t.
func (l *ResourceLedger) CountAt(cat model.ResourceCategory, t time.Time) int {
	n := 0
	for _, iv := range l.busy[cat] {
		if !t.Before(iv.Start) && t.Before(iv.End) {
			n++
		}
	}
	return n
}

// CanReserve reports whether one more reservation of cat over [start,end)
// would keep every instant at or below capacity.
func (l *ResourceLedger) CanReserve(cat model.ResourceCategory, start, end time.Time) bool {
	return l.maxOverlap(cat, start, end)+1 <= l.Capacity(cat)
}

// Reserve commits a busy window for cat. The capacity check always runs
// before the commit; a would-be overflow returns ResourceOverflowError and
// leaves the ledger untouched.
func (l *ResourceLedger) Reserve(cat model.ResourceCategory, start, end time.Time) error {
	if !l.CanReserve(cat, start, end) {
		return &model.ResourceOverflowError{
			Resource: cat,
			At:       start,
			Capacity: l.Capacity(cat),
		}
	}
	ivs := l.busy[cat]
	idx := sort.Search(len(ivs), func(i int) bool { return !ivs[i].Start.Before(start) })
	ivs = append(ivs, interval{})
	copy(ivs[idx+1:], ivs[idx:])
	ivs[idx] = interval{Start: start, End: end}
	l.busy[cat] = ivs
	return nil
}

// Release removes one reservation exactly matching [start,end), supporting
// rollback during search and backtracking. Releasing a window that was
// never reserved is a no-op.
func (l *ResourceLedger) Release(cat model.ResourceCategory, start, end time.Time) {
	ivs := l.busy[cat]
	for i, iv := range ivs {
		if iv.Start.Equal(start) && iv.End.Equal(end) {
			l.busy[cat] = append(ivs[:i], ivs[i+1:]...)
			return
		}
	}
}

// ReserveTask reserves every resource category a task consumes, rolling the
// task's own reservations back if any category would overflow.
func (l *ResourceLedger) ReserveTask(task *model.ScheduledTask) error {
	for i, cat := range task.Resources {
		if err := l.Reserve(cat, task.StartTime, task.EndTime); err != nil {
			for _, done := range task.Resources[:i] {
				l.Release(done, task.StartTime, task.EndTime)
			}
			return err
		}
	}
	return nil
}

// ReleaseTask releases every reservation made by ReserveTask.
func (l *ResourceLedger) ReleaseTask(task *model.ScheduledTask) {
	for _, cat := range task.Resources {
		l.Release(cat, task.StartTime, task.EndTime)
	}
}

// SeedTasks loads already-committed tasks (e.g. from the store) into the
// ledger before scheduling new work.
func (l *ResourceLedger) SeedTasks(tasks []*model.ScheduledTask) error {
	for _, t := range tasks {
		if err := l.ReserveTask(t); err != nil {
			return err
		}
	}
	return nil
}

// maxOverlap computes the maximum number of existing reservations of cat
// active at any instant within [start,end) by sweeping interval endpoints.
func (l *ResourceLedger) maxOverlap(cat model.ResourceCategory, start, end time.Time) int {
	type event struct {
		at    time.Time
		delta int
	}
	var events []event
	for _, iv := range l.busy[cat] {
		if !iv.Start.Before(end) || !start.Before(iv.End) {
			continue
		}
		from := iv.Start
		if from.Before(start) {
			from = start
		}
		to := iv.End
		if to.After(end) {
			to = end
		}
		events = append(events, event{from, +1}, event{to, -1})
	}
	if len(events) == 0 {
		return 0
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			// Process releases before acquires at the same instant:
			// [a,b) and [b,c) do not overlap.
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	current, max := 0, 0
	for _, e := range events {
		current += e.delta
		if current > max {
			max = current
		}
	}
	return max
}

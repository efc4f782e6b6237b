package model

import "time"

// ScheduledTask is one placed unit of production work: a single recipe step
// executed for a single batch. Start/end are minute-resolution UTC instants
// and End is always after Start. The scheduler creates tasks and never
// mutates them afterwards; Status is advanced by external task tracking.
type ScheduledTask struct {
	ID          string             `json:"id"`
	OrderID     string             `json:"order_id"`
	OrderItemID string             `json:"order_item_id,omitempty"`
	BatchID     string             `json:"batch_id,omitempty"`
	Step        string             `json:"step"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	Resources   []ResourceCategory `json:"resources"`
	BatchSize   int                `json:"batch_size"`
	Status      TaskStatus         `json:"status"`
}

// Duration returns the task length in whole minutes.
func (t *ScheduledTask) Duration() int {
	return int(t.EndTime.Sub(t.StartTime) / time.Minute)
}

// Overlaps reports whether this task's [start,end) interval intersects the
// given interval.
func (t *ScheduledTask) Overlaps(start, end time.Time) bool {
	return t.StartTime.Before(end) && start.Before(t.EndTime)
}

// Requires reports whether the task consumes the given resource category.
func (t *ScheduledTask) Requires(cat ResourceCategory) bool {
	for _, r := range t.Resources {
		if r == cat {
			return true
		}
	}
	return false
}

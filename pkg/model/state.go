package model

// TaskStatus represents the lifecycle status of a ScheduledTask. The
// scheduler always creates tasks as PENDING; later transitions happen in the
// task-tracking boundary, never inside the engine.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted
}

// ValidTaskTransitions defines the allowed status transitions for tasks.
var ValidTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusBlocked},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusBlocked},
	TaskStatusBlocked:    {TaskStatusPending, TaskStatusInProgress},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderStatus represents the lifecycle status of an Order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusScheduled OrderStatus = "scheduled"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// String returns the string representation of the order status.
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the order is in a final status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

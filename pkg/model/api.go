package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit  int
	Offset int
	Status string // Optional order-status filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// ValidationResult is what the validator returns. Validation failures are
// structured results, never errors thrown past the validator.
type ValidationResult struct {
	Valid    bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings"`
}

// ScheduleResult pairs an order with its scheduled tasks.
type ScheduleResult struct {
	OrderID string           `json:"order_id"`
	Tasks   []*ScheduledTask `json:"tasks"`
}

// ResourceUtilization summarizes one resource's load over a day.
type ResourceUtilization struct {
	Resource     ResourceCategory `json:"resource"`
	BusyMinutes  int              `json:"busy_minutes"`
	TotalMinutes int              `json:"total_minutes"`
	Percent      float64          `json:"utilization_percentage"`
}

// DailySummary aggregates one day's schedule for reporting.
type DailySummary struct {
	Date        string                `json:"date"`
	TotalOrders int                   `json:"total_orders"`
	TotalTasks  int                   `json:"total_tasks"`
	Utilization []ResourceUtilization `json:"resource_utilization"`
	StartTime   *time.Time            `json:"start_time,omitempty"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
}

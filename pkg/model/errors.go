package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrUnschedulable ErrorCode = "UNSCHEDULABLE"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the HTTP boundary.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details []string  `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...string) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// UnknownProductError is returned when an order references a product with no
// recipe in the catalog. Fatal for the order, not the process.
type UnknownProductError struct {
	Product string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("no recipe for product %q", e.Product)
}

// InvalidRecipeError is returned when a recipe's own constraints are
// inconsistent (bad batch bounds, non-positive durations).
type InvalidRecipeError struct {
	Product string
	Reason  string
}

func (e *InvalidRecipeError) Error() string {
	return fmt.Sprintf("invalid recipe for %q: %s", e.Product, e.Reason)
}

// InvalidDateError is returned for unparseable or non-future delivery dates.
type InvalidDateError struct {
	Date   string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid delivery date %q: %s", e.Date, e.Reason)
}

// StorageConstraintError is returned when a chilled recipe exceeds the
// configured storage limits.
type StorageConstraintError struct {
	Product      string
	MaxChillTime int // minutes the recipe asks for
	StorageLimit int // minutes the bakery can provide
}

func (e *StorageConstraintError) Error() string {
	return fmt.Sprintf("product %q needs %d min of chilled storage, limit is %d min",
		e.Product, e.MaxChillTime, e.StorageLimit)
}

// NoFeasibleSlotError is returned when the slot search exhausts its horizon
// without finding a placement. The caller may retry with relaxed constraints.
type NoFeasibleSlotError struct {
	Step        string
	Before      time.Time // upper bound the search worked back from
	HorizonDays int
}

func (e *NoFeasibleSlotError) Error() string {
	return fmt.Sprintf("no feasible slot for step %q ending by %s within %d day(s)",
		e.Step, e.Before.Format(time.RFC3339), e.HorizonDays)
}

// ResourceOverflowError signals an internal invariant violation: a
// reservation that would push a resource past its capacity. Reservations are
// always checked before commit, so seeing this escape the ledger is a bug.
type ResourceOverflowError struct {
	Resource ResourceCategory
	At       time.Time
	Capacity int
}

func (e *ResourceOverflowError) Error() string {
	return fmt.Sprintf("resource %q over capacity %d at %s",
		e.Resource, e.Capacity, e.At.Format(time.RFC3339))
}

// SchedulingError wraps a lower-level failure with order context for the
// order-processing boundary.
type SchedulingError struct {
	OrderID string
	Step    string
	Err     error
}

func (e *SchedulingError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("scheduling order %s failed at step %q: %v", e.OrderID, e.Step, e.Err)
	}
	return fmt.Sprintf("scheduling order %s failed: %v", e.OrderID, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// IsNoFeasibleSlot reports whether err is (or wraps) a NoFeasibleSlotError.
func IsNoFeasibleSlot(err error) bool {
	var nfs *NoFeasibleSlotError
	return errors.As(err, &nfs)
}

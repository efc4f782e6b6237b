package store

import (
	"context"

	"github.com/me/bakesched/pkg/model"
)

// Store defines the persistence layer for orders and their schedules.
type Store interface {
	// Order CRUD
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, opts model.ListOptions) ([]*model.Order, int, error)
	OrdersByDate(ctx context.Context, date string) ([]*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error

	// Scheduled tasks
	SaveTasks(ctx context.Context, tasks []*model.ScheduledTask) error
	TasksForDate(ctx context.Context, date string) ([]*model.ScheduledTask, error)
	TasksInRange(ctx context.Context, from, to string) ([]*model.ScheduledTask, error)
	TasksByOrder(ctx context.Context, orderID string) ([]*model.ScheduledTask, error)
	ReplaceTasksForOrders(ctx context.Context, orderIDs []string, tasks []*model.ScheduledTask) error
	UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/bakesched/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Order CRUD ---

// CreateOrder inserts the order and its items in one transaction.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *model.Order) error {
	s.logger.Debug("sql", "op", "insert", "table", "orders", "id", order.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_name, status, delivery_date, delivery_slot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.CustomerName, string(order.Status),
		order.DeliveryDate, order.DeliverySlot,
		order.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product, quantity) VALUES (?, ?, ?, ?)`,
			item.ID, order.ID, item.Product, item.Quantity,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOrder returns the order with its items, or nil if it does not exist.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	s.logger.Debug("sql", "op", "select", "table", "orders", "id", id)

	var order model.Order
	var status, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, status, delivery_date, delivery_slot, created_at
		 FROM orders WHERE id = ?`, id,
	).Scan(&order.ID, &order.CustomerName, &status,
		&order.DeliveryDate, &order.DeliverySlot, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderStatus(status)
	order.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	items, err := s.itemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	order.Items = items

	return &order, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, opts model.ListOptions) ([]*model.Order, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "orders", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var whereClauses []string
	var args []any
	if opts.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, opts.Status)
	}
	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, status, delivery_date, delivery_slot, created_at
		 FROM orders`+whereSQL+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		listArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := s.scanOrders(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// OrdersByDate returns every order delivering on the given YYYY-MM-DD date.
func (s *SQLiteStore) OrdersByDate(ctx context.Context, date string) ([]*model.Order, error) {
	s.logger.Debug("sql", "op", "list_by_date", "table", "orders", "date", date)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, status, delivery_date, delivery_slot, created_at
		 FROM orders WHERE delivery_date = ? ORDER BY delivery_slot, created_at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanOrders(ctx, rows)
}

func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	s.logger.Debug("sql", "op", "update_status", "table", "orders", "id", id, "status", status)

	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("order %s not found", id)
	}
	return nil
}

// --- Scheduled tasks ---

// SaveTasks inserts all tasks in one transaction.
func (s *SQLiteStore) SaveTasks(ctx context.Context, tasks []*model.ScheduledTask) error {
	s.logger.Debug("sql", "op", "insert", "table", "scheduled_tasks", "count", len(tasks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertTasks(ctx, tx, tasks); err != nil {
		return err
	}
	return tx.Commit()
}

// TasksForDate returns every task starting on the given YYYY-MM-DD date,
// ordered by start time. Satisfies the engine's TaskSource.
func (s *SQLiteStore) TasksForDate(ctx context.Context, date string) ([]*model.ScheduledTask, error) {
	s.logger.Debug("sql", "op", "list_by_date", "table", "scheduled_tasks", "date", date)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, order_item_id, batch_id, step, start_time, end_time, resources, batch_size, status
		 FROM scheduled_tasks WHERE date(start_time) = ? ORDER BY start_time`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *SQLiteStore) TasksByOrder(ctx context.Context, orderID string) ([]*model.ScheduledTask, error) {
	s.logger.Debug("sql", "op", "list", "table", "scheduled_tasks", "order_id", orderID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, order_item_id, batch_id, step, start_time, end_time, resources, batch_size, status
		 FROM scheduled_tasks WHERE order_id = ? ORDER BY start_time`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// TasksInRange returns every task starting within [from, to] (inclusive
// YYYY-MM-DD dates), ordered by start time. Used to seed the ledger before
// scheduling new work, since production may reach back across days.
func (s *SQLiteStore) TasksInRange(ctx context.Context, from, to string) ([]*model.ScheduledTask, error) {
	s.logger.Debug("sql", "op", "list_in_range", "table", "scheduled_tasks", "from", from, "to", to)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, order_item_id, batch_id, step, start_time, end_time, resources, batch_size, status
		 FROM scheduled_tasks WHERE date(start_time) >= ? AND date(start_time) <= ? ORDER BY start_time`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ReplaceTasksForOrders swaps the given orders' tasks for an optimized set
// atomically.
func (s *SQLiteStore) ReplaceTasksForOrders(ctx context.Context, orderIDs []string, tasks []*model.ScheduledTask) error {
	s.logger.Debug("sql", "op", "replace_by_orders", "table", "scheduled_tasks", "orders", len(orderIDs), "count", len(tasks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range orderIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM scheduled_tasks WHERE order_id = ?`, id); err != nil {
			return err
		}
	}
	if err := insertTasks(ctx, tx, tasks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error {
	s.logger.Debug("sql", "op", "update_status", "table", "scheduled_tasks", "id", id, "status", status)

	result, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// --- scan helpers ---

func (s *SQLiteStore) itemsByOrder(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product, quantity FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.Product, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) scanOrders(ctx context.Context, rows *sql.Rows) ([]*model.Order, error) {
	var orders []*model.Order
	for rows.Next() {
		var order model.Order
		var status, createdAt string

		if err := rows.Scan(&order.ID, &order.CustomerName, &status,
			&order.DeliveryDate, &order.DeliverySlot, &createdAt); err != nil {
			return nil, err
		}
		order.Status = model.OrderStatus(status)
		order.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		items, err := s.itemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("load items for %s: %w", order.ID, err)
		}
		order.Items = items
	}
	return orders, nil
}

func insertTasks(ctx context.Context, tx *sql.Tx, tasks []*model.ScheduledTask) error {
	for _, task := range tasks {
		resourcesJSON, err := json.Marshal(task.Resources)
		if err != nil {
			return fmt.Errorf("marshal resources: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scheduled_tasks (id, order_id, order_item_id, batch_id, step, start_time, end_time, resources, batch_size, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.OrderID, task.OrderItemID, task.BatchID, task.Step,
			task.StartTime.UTC().Format(time.RFC3339Nano), task.EndTime.UTC().Format(time.RFC3339Nano),
			string(resourcesJSON), task.BatchSize, string(task.Status),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]*model.ScheduledTask, error) {
	var tasks []*model.ScheduledTask
	for rows.Next() {
		var task model.ScheduledTask
		var resourcesJSON, startTime, endTime, status string

		if err := rows.Scan(&task.ID, &task.OrderID, &task.OrderItemID, &task.BatchID,
			&task.Step, &startTime, &endTime, &resourcesJSON,
			&task.BatchSize, &status); err != nil {
			return nil, err
		}
		task.Status = model.TaskStatus(status)
		if err := json.Unmarshal([]byte(resourcesJSON), &task.Resources); err != nil {
			return nil, fmt.Errorf("task %s: decode resources: %w", task.ID, err)
		}
		var err error
		if task.StartTime, err = time.Parse(time.RFC3339Nano, startTime); err != nil {
			return nil, fmt.Errorf("task %s: parse start_time: %w", task.ID, err)
		}
		if task.EndTime, err = time.Parse(time.RFC3339Nano, endTime); err != nil {
			return nil, fmt.Errorf("task %s: parse end_time: %w", task.ID, err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

package engine

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

// RecipeSource supplies recipes to the engine. The catalog satisfies it.
type RecipeSource interface {
	RecipeForProduct(productID string) (*model.Recipe, error)
}

// Scheduler produces the full task list for one order by walking each
// batch's recipe steps backward from the delivery deadline, committing
// reservations to the ledger as it goes.
type Scheduler struct {
	recipes RecipeSource
	kitchen config.KitchenConfig
	slots   *SlotFinder
	logger  *slog.Logger
}

// NewScheduler creates a scheduler for the given kitchen constraints.
func NewScheduler(recipes RecipeSource, kitchen config.KitchenConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		recipes: recipes,
		kitchen: kitchen,
		slots:   NewSlotFinder(kitchen.Hours, kitchen.MaxLookBackDays),
		logger:  logger.With("component", "scheduler"),
	}
}

// NewLedger returns an empty ledger sized to this scheduler's capacities.
func (s *Scheduler) NewLedger() *ResourceLedger {
	return NewLedger(s.kitchen.Capacities)
}

// Deadline returns the instant the order's last production step must end:
// delivery time minus the pre-delivery buffer.
func (s *Scheduler) Deadline(order *model.Order) (time.Time, error) {
	delivery, err := order.DeliveryTime()
	if err != nil {
		return time.Time{}, &model.InvalidDateError{
			Date:   order.DeliveryDate + " " + order.DeliverySlot,
			Reason: err.Error(),
		}
	}
	return delivery.Add(-time.Duration(s.kitchen.PreDeliveryBufferMin) * time.Minute), nil
}

// ScheduleOrder places every step of every batch of every item of one order,
// reserving ledger capacity as each task is placed. On any failure the
// order's own reservations are rolled back and the ledger is left exactly
// as it was. Returned tasks are sorted by ascending start time.
func (s *Scheduler) ScheduleOrder(order *model.Order, ledger *ResourceLedger) ([]*model.ScheduledTask, error) {
	return s.scheduleOrder(order, ledger, 0)
}

// scheduleOrder is ScheduleOrder with an extra slack duration pulled off the
// deadline; the optimizer uses slack to perturb candidate schedules.
func (s *Scheduler) scheduleOrder(order *model.Order, ledger *ResourceLedger, slack time.Duration) ([]*model.ScheduledTask, error) {
	deadline, err := s.Deadline(order)
	if err != nil {
		return nil, &model.SchedulingError{OrderID: order.ID, Err: err}
	}
	deadline = deadline.Add(-slack)

	var placed []*model.ScheduledTask
	fail := func(step string, cause error) ([]*model.ScheduledTask, error) {
		for _, t := range placed {
			ledger.ReleaseTask(t)
		}
		return nil, &model.SchedulingError{OrderID: order.ID, Step: step, Err: cause}
	}

	for _, item := range order.Items {
		recipe, err := s.recipes.RecipeForProduct(item.Product)
		if err != nil {
			return fail("", err)
		}
		batches, err := PlanBatches(item.Quantity, recipe)
		if err != nil {
			return fail("", err)
		}

		for _, batchSize := range batches {
			tasks, err := s.scheduleBatch(order, item, recipe, batchSize, deadline, ledger)
			if err != nil {
				var se *model.SchedulingError
				if errors.As(err, &se) {
					return fail(se.Step, se.Err)
				}
				return fail("", err)
			}
			placed = append(placed, tasks...)
		}
	}

	sort.Slice(placed, func(i, j int) bool { return placed[i].StartTime.Before(placed[j].StartTime) })

	s.logger.Debug("order scheduled",
		"order_id", order.ID,
		"tasks", len(placed),
		"deadline", deadline,
	)
	return placed, nil
}

// scheduleBatch walks one batch's steps in reverse, anchoring the last step
// at the deadline. Steps flagged must-follow-immediately take a forced
// anchor; the rest get the latest feasible slot ending a gap buffer before
// their successor. Reservations are committed immediately so later batches
// see them; the caller rolls back on failure.
func (s *Scheduler) scheduleBatch(order *model.Order, item model.OrderItem, recipe *model.Recipe, batchSize int, deadline time.Time, ledger *ResourceLedger) ([]*model.ScheduledTask, error) {
	batchID := "batch_" + uuid.New().String()[:8]
	gap := time.Duration(s.kitchen.StepGapBufferMin) * time.Minute

	var tasks []*model.ScheduledTask
	rollback := func(step string, cause error) ([]*model.ScheduledTask, error) {
		for _, t := range tasks {
			ledger.ReleaseTask(t)
		}
		return nil, &model.SchedulingError{OrderID: order.ID, Step: step, Err: cause}
	}

	var next *model.ScheduledTask // successor step in recipe order
	for i := len(recipe.Steps) - 1; i >= 0; i-- {
		step := &recipe.Steps[i]
		duration := StepDuration(step, batchSize, recipe)

		var start time.Time
		forced := next != nil && i+1 < len(recipe.Steps) && recipe.Steps[i+1].MustFollowImmediately
		if forced {
			// Zero gap: this step ends exactly where its successor starts.
			start = next.StartTime.Add(-duration)
			end := next.StartTime
			if !s.kitchen.Hours.Contains(start, end) {
				return rollback(step.Name, &model.NoFeasibleSlotError{
					Step:        step.Name,
					Before:      end,
					HorizonDays: s.kitchen.MaxLookBackDays,
				})
			}
			if !s.slots.free(ledger, step.Resources, start, end) {
				return rollback(step.Name, &model.NoFeasibleSlotError{
					Step:        step.Name,
					Before:      end,
					HorizonDays: s.kitchen.MaxLookBackDays,
				})
			}
		} else {
			upper := deadline
			if next != nil {
				upper = next.StartTime.Add(-gap)
			}
			var err error
			start, err = s.slots.FindLatest(ledger, step.Name, step.Resources, duration, upper)
			if err != nil {
				return rollback(step.Name, err)
			}
		}

		task := &model.ScheduledTask{
			ID:          "task_" + uuid.New().String(),
			OrderID:     order.ID,
			OrderItemID: item.ID,
			BatchID:     batchID,
			Step:        step.Name,
			StartTime:   start,
			EndTime:     start.Add(duration),
			Resources:   append([]model.ResourceCategory(nil), step.Resources...),
			BatchSize:   batchSize,
			Status:      model.TaskStatusPending,
		}
		if err := ledger.ReserveTask(task); err != nil {
			return rollback(step.Name, err)
		}
		tasks = append(tasks, task)
		next = task
	}

	return tasks, nil
}

// StepDuration computes a step's effective duration for a batch: base
// duration × scaling factor × batchSize/maxBatchSize, rounded to a whole
// minute and never below one minute.
func StepDuration(step *model.ProductionStep, batchSize int, recipe *model.Recipe) time.Duration {
	scaling := step.ScalingFactor
	if scaling <= 0 {
		scaling = 1
	}
	mins := math.Round(float64(step.Duration) * scaling * float64(batchSize) / float64(recipe.MaxBatchSize))
	if mins < 1 {
		mins = 1
	}
	return time.Duration(mins) * time.Minute
}

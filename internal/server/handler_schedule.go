package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/bakesched/internal/engine"
	"github.com/me/bakesched/pkg/model"
)

const dateLayout = "2006-01-02"

// handleGetSchedule returns the tasks starting on a date, or the aggregated
// daily summary when ?summary=true.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	date := chi.URLParam(r, "date")

	if _, err := time.Parse(dateLayout, date); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date)))
		return
	}

	tasks, err := s.store.TasksForDate(r.Context(), date)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*model.ScheduledTask{}
	}

	if r.URL.Query().Get("summary") == "true" {
		respondOK(w, reqID, engine.BuildDailySummary(date, tasks, s.config.Kitchen))
		return
	}
	respondOK(w, reqID, tasks)
}

// handleOptimizeSchedule reschedules every active order delivering on the
// date through the optimizer and persists the improved schedule.
func (s *Server) handleOptimizeSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	date := chi.URLParam(r, "date")

	if _, err := time.Parse(dateLayout, date); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date)))
		return
	}

	all, err := s.store.OrdersByDate(r.Context(), date)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	var orders []*model.Order
	for _, o := range all {
		if !o.Status.IsTerminal() {
			orders = append(orders, o)
		}
	}
	if len(orders) == 0 {
		respondOK(w, reqID, &engine.OptimizationResult{Tasks: []*model.ScheduledTask{}})
		return
	}

	// Reservations for orders outside this date stay fixed: seed them into
	// the baseline the optimizer plans around.
	baseline, err := s.baselineExcluding(r, date, orders)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	opt := engine.NewOptimizer(s.scheduler, s.catalog, s.config.Optimizer, s.logger, s.optimizerSeed())
	result, err := opt.Optimize(r.Context(), orders, baseline)
	if err != nil {
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{
			Code:    model.ErrUnschedulable,
			Message: err.Error(),
		})
		return
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	if err := s.store.ReplaceTasksForOrders(r.Context(), ids, result.Tasks); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	s.logger.Info("schedule optimized",
		"date", date,
		"orders", len(orders),
		"fitness", result.Fitness,
		"improved", result.Improved,
	)
	respondOK(w, reqID, result)
}

// seededLedger builds a ledger preloaded with every committed task near the
// delivery date, so new work competes with what is already planned.
func (s *Server) seededLedger(r *http.Request, deliveryDate string) (*engine.ResourceLedger, error) {
	from, to, err := s.seedWindow(deliveryDate)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.TasksInRange(r.Context(), from, to)
	if err != nil {
		return nil, fmt.Errorf("load committed tasks: %w", err)
	}
	ledger := s.scheduler.NewLedger()
	if err := ledger.SeedTasks(tasks); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}
	return ledger, nil
}

// baselineExcluding is seededLedger minus the tasks belonging to the orders
// about to be rescheduled.
func (s *Server) baselineExcluding(r *http.Request, date string, orders []*model.Order) (*engine.ResourceLedger, error) {
	from, to, err := s.seedWindow(date)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.TasksInRange(r.Context(), from, to)
	if err != nil {
		return nil, fmt.Errorf("load committed tasks: %w", err)
	}

	moving := make(map[string]bool, len(orders))
	for _, o := range orders {
		moving[o.ID] = true
	}
	ledger := s.scheduler.NewLedger()
	for _, t := range tasks {
		if moving[t.OrderID] {
			continue
		}
		if err := ledger.ReserveTask(t); err != nil {
			return nil, fmt.Errorf("seed ledger: %w", err)
		}
	}
	return ledger, nil
}

// seedWindow is the date range whose tasks can interact with production for
// the given delivery date: the look-back horizon on both sides.
func (s *Server) seedWindow(date string) (string, string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", "", &model.InvalidDateError{Date: date, Reason: "want YYYY-MM-DD"}
	}
	lookback := s.config.Kitchen.MaxLookBackDays
	from := day.AddDate(0, 0, -lookback).Format(dateLayout)
	to := day.AddDate(0, 0, lookback).Format(dateLayout)
	return from, to, nil
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

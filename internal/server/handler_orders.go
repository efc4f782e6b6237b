package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/bakesched/pkg/model"
)

type orderRequest struct {
	CustomerName string `json:"customer_name"`
	DeliveryDate string `json:"delivery_date"`
	DeliverySlot string `json:"delivery_slot"`
	Items        []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
}

// toOrder builds a model.Order with fresh ids from the request body.
func (req *orderRequest) toOrder() *model.Order {
	order := &model.Order{
		ID:           "order_" + uuid.New().String(),
		CustomerName: req.CustomerName,
		Status:       model.OrderStatusPending,
		DeliveryDate: req.DeliveryDate,
		DeliverySlot: req.DeliverySlot,
		CreatedAt:    time.Now().UTC(),
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, model.OrderItem{
			ID:       "item_" + uuid.New().String()[:8],
			Product:  item.Product,
			Quantity: item.Quantity,
		})
	}
	return order
}

// handleValidateOrder checks an order without scheduling or persisting it.
// Invalid orders are a 200 with a structured result, never a server error.
func (s *Server) handleValidateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	respondOK(w, reqID, s.validator.ValidateOrder(req.toOrder()))
}

// handleCreateOrder validates, schedules and persists an order. Validation
// failures are 400; a valid order that cannot be placed is 422.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	order := req.toOrder()
	result := s.validator.ValidateOrder(order)
	if !result.Valid {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("order failed validation", result.Errors...))
		return
	}

	ledger, err := s.seededLedger(r, order.DeliveryDate)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	tasks, err := s.scheduler.ScheduleOrder(order, ledger)
	if err != nil {
		s.logger.Warn("order unschedulable", "order_id", order.ID, "error", err)
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{
			Code:    model.ErrUnschedulable,
			Message: err.Error(),
		})
		return
	}

	order.Status = model.OrderStatusScheduled
	if err := s.store.CreateOrder(r.Context(), order); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if err := s.store.SaveTasks(r.Context(), tasks); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	s.logger.Info("order scheduled", "order_id", order.ID, "tasks", len(tasks))
	respondCreated(w, reqID, struct {
		Order    *model.Order          `json:"order"`
		Schedule *model.ScheduleResult `json:"schedule"`
		Warnings []string              `json:"warnings"`
	}{order, &model.ScheduleResult{OrderID: order.ID, Tasks: tasks}, result.Warnings})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			opts.Offset = n
		}
	}
	opts.Status = r.URL.Query().Get("status")
	opts.Clamp()

	orders, total, err := s.store.ListOrders(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if orders == nil {
		orders = []*model.Order{}
	}

	respondList(w, reqID, orders, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(orders) < total,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	order, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if order == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("order", id))
		return
	}

	tasks, err := s.store.TasksByOrder(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*model.ScheduledTask{}
	}

	respondOK(w, reqID, struct {
		Order *model.Order           `json:"order"`
		Tasks []*model.ScheduledTask `json:"tasks"`
	}{order, tasks})
}

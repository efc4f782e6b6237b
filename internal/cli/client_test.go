package cli

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/bakesched/pkg/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any, pg *model.Pagination, apiErr *model.APIError) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(model.Response{
		Status:     "ok",
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestClientValidateOrder(t *testing.T) {
	var gotPath, gotReqID, gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		writeEnvelope(t, w, http.StatusOK, model.ValidationResult{
			Valid:    false,
			Errors:   []string{"unknown product \"unicorn\""},
			Warnings: []string{},
		}, nil, nil)
	})

	result, err := c.ValidateOrder(&orderFile{CustomerName: "Cafe Edelweiss"})
	if err != nil {
		t.Fatalf("ValidateOrder: %v", err)
	}
	if result.Valid || len(result.Errors) != 1 {
		t.Errorf("result = %+v", result)
	}
	if gotPath != "/api/v1/orders/validate" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotReqID, "req_cli_") {
		t.Errorf("request id %q missing req_cli_ prefix", gotReqID)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
}

func TestClientSubmitOrderDecodesSchedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusCreated, SubmitResult{
			Order: &model.Order{ID: "order_1", Status: model.OrderStatusScheduled},
			Schedule: &model.ScheduleResult{
				OrderID: "order_1",
				Tasks:   []*model.ScheduledTask{{ID: "task_1", Step: "bake"}},
			},
			Warnings: []string{"quantity 2 for \"loaf\" is below the minimum batch of 3; production will be rounded up"},
		}, nil, nil)
	})

	result, err := c.SubmitOrder(&orderFile{CustomerName: "Cafe Edelweiss"})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Schedule.OrderID != "order_1" || len(result.Schedule.Tasks) != 1 {
		t.Errorf("schedule = %+v", result.Schedule)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestClientOrdersPagination(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeEnvelope(t, w, http.StatusOK,
			[]*model.Order{{ID: "order_1"}, {ID: "order_2"}},
			&model.Pagination{Total: 5, Limit: 2, Offset: 0, HasMore: true},
			nil)
	})

	page, err := c.Orders("scheduled", 2, 0)
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(page.Orders) != 2 {
		t.Errorf("got %d orders, want 2", len(page.Orders))
	}
	if page.Pagination == nil || !page.Pagination.HasMore || page.Pagination.Total != 5 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	if gotQuery != "limit=2&offset=0&status=scheduled" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnprocessableEntity, nil, nil, &model.APIError{
			Code:    model.ErrUnschedulable,
			Message: "no feasible slot for step \"bake\"",
		})
	})

	_, err := c.OptimizeSchedule("2030-06-01")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrUnschedulable {
		t.Errorf("code = %s, want UNSCHEDULABLE", apiErr.Code)
	}
}

func TestClientRejectsNonEnvelopeBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>upstream error</html>")
	})

	if _, err := c.Schedule("2030-06-01"); err == nil {
		t.Fatal("expected parse error for a non-JSON body")
	}
}

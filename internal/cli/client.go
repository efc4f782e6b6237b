package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/me/bakesched/pkg/model"
)

// Client is a typed HTTP client for the bakesched API. Every method decodes
// the server's response envelope and hands back the domain payload; server
// rejections come back as the *model.APIError from the envelope.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// requestID is sent as X-Request-ID on every call, so one CLI
	// invocation shows up under one id in the server logs.
	requestID string
}

// NewClient creates a bakesched API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
		requestID:  "req_cli_" + uuid.New().String()[:8],
	}
}

// OrderDetail pairs an order with its scheduled tasks.
type OrderDetail struct {
	Order *model.Order           `json:"order"`
	Tasks []*model.ScheduledTask `json:"tasks"`
}

// SubmitResult is the create-order response: the stored order, its
// schedule, and any validation warnings.
type SubmitResult struct {
	Order    *model.Order          `json:"order"`
	Schedule *model.ScheduleResult `json:"schedule"`
	Warnings []string              `json:"warnings"`
}

// OrderPage is one page of the order listing.
type OrderPage struct {
	Orders     []*model.Order
	Pagination *model.Pagination
}

// OptimizeReport summarizes one optimizer run over a date's orders.
type OptimizeReport struct {
	Tasks       []*model.ScheduledTask `json:"tasks"`
	Fitness     float64                `json:"fitness"`
	Generations int                    `json:"generations"`
	Improved    bool                   `json:"improved"`
}

// ValidateOrder checks an order without scheduling or persisting it.
func (c *Client) ValidateOrder(order *orderFile) (*model.ValidationResult, error) {
	var result model.ValidationResult
	if _, err := c.do(http.MethodPost, "/api/v1/orders/validate", order, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitOrder validates, schedules and persists an order.
func (c *Client) SubmitOrder(order *orderFile) (*SubmitResult, error) {
	var result SubmitResult
	if _, err := c.do(http.MethodPost, "/api/v1/orders", order, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Order fetches one order with its scheduled tasks.
func (c *Client) Order(id string) (*OrderDetail, error) {
	var detail OrderDetail
	if _, err := c.do(http.MethodGet, "/api/v1/orders/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Orders lists orders, optionally filtered by status.
func (c *Client) Orders(status string, limit, offset int) (*OrderPage, error) {
	path := fmt.Sprintf("/api/v1/orders?limit=%d&offset=%d", limit, offset)
	if status != "" {
		path += "&status=" + url.QueryEscape(status)
	}
	var orders []*model.Order
	pg, err := c.do(http.MethodGet, path, nil, &orders)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Pagination: pg}, nil
}

// Schedule returns the tasks starting on a YYYY-MM-DD date.
func (c *Client) Schedule(date string) ([]*model.ScheduledTask, error) {
	var tasks []*model.ScheduledTask
	if _, err := c.do(http.MethodGet, "/api/v1/schedule/"+url.PathEscape(date), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// DailySummary returns the aggregated production summary for a date.
func (c *Client) DailySummary(date string) (*model.DailySummary, error) {
	var summary model.DailySummary
	path := "/api/v1/schedule/" + url.PathEscape(date) + "?summary=true"
	if _, err := c.do(http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// OptimizeSchedule reruns a date's orders through the optimizer.
func (c *Client) OptimizeSchedule(date string) (*OptimizeReport, error) {
	var report OptimizeReport
	path := "/api/v1/schedule/" + url.PathEscape(date) + "/optimize"
	if _, err := c.do(http.MethodPost, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// do performs a request and decodes the envelope's data field into out
// (which may be nil). The envelope's pagination is returned for list calls.
func (c *Client) do(method, path string, body, out any) (*model.Pagination, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", c.requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Debug("HTTP request", "method", method, "path", path, "request_id", c.requestID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "bytes", len(respBody))

	var envelope struct {
		Status     string            `json:"status"`
		Data       json.RawMessage   `json:"data"`
		Pagination *model.Pagination `json:"pagination"`
		Error      *model.APIError   `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return envelope.Pagination, nil
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/scheduling"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second

	wireTimeFormat = "2006-01-02T15:04:05Z"
)

// Client is the adapter to the Arke manufacturing API. It owns the bearer
// token, refreshing it silently when the API answers 401, and retries
// transient failures with capped exponential backoff.
type Client struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client

	mu    sync.Mutex
	token string
}

// NewClient builds a gateway client. It does not authenticate eagerly; the
// first request triggers a login.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpc:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/api" + path
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login authenticates with stored credentials and caches the token.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/login"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return classify("login", 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return classify("login", resp.StatusCode, fmt.Errorf("login rejected"))
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return classify("login", 0, err)
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()
	return nil
}

// once performs a single request and decodes the JSON response into out
// (out may be nil for operations with no interesting body).
func (c *Client) once(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindPermanent, Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return &Error{Kind: KindPermanent, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	observability.GatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return classify(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return classify(op, resp.StatusCode, fmt.Errorf("%s", bytes.TrimSpace(data)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(op, 0, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindPermanent, Op: op, Err: err}
	}
	return nil
}

// do wraps once with the retry policy: transient errors back off and retry
// up to maxAttempts, an expired token is refreshed silently and the call
// retried once.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	refreshed := false
	backoff := baseBackoff

	for attempt := 1; ; attempt++ {
		if c.bearer() == "" {
			if err := c.Login(ctx); err != nil {
				observability.GatewayRequests.WithLabelValues(op, "auth_expired").Inc()
				return err
			}
		}

		err := c.once(ctx, op, method, path, body, out)
		if err == nil {
			observability.GatewayRequests.WithLabelValues(op, "ok").Inc()
			return nil
		}

		var gerr *Error
		if !errors.As(err, &gerr) {
			return err
		}
		observability.GatewayRequests.WithLabelValues(op, string(gerr.Kind)).Inc()

		switch gerr.Kind {
		case KindAuthExpired:
			if refreshed {
				return err
			}
			log.Printf("[GATEWAY] token expired on %s, re-authenticating", op)
			if lerr := c.Login(ctx); lerr != nil {
				return lerr
			}
			refreshed = true
			continue
		case KindTransient:
			if attempt >= maxAttempts {
				return err
			}
			observability.GatewayRetries.Inc()
			log.Printf("[GATEWAY] transient failure on %s (attempt %d/%d): %v", op, attempt, maxAttempts, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &Error{Kind: KindTransient, Op: op, Err: ctx.Err()}
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		default:
			return err
		}
	}
}

// --- Sales Orders ---

// ListSalesOrders returns the open order book filtered by status.
func (c *Client) ListSalesOrders(ctx context.Context, status scheduling.OrderStatus) ([]scheduling.SalesOrder, error) {
	var raw []salesOrderDTO
	if err := c.do(ctx, "list_sales_orders", http.MethodGet, "/sales/order/_active", nil, &raw); err != nil {
		return nil, err
	}
	orders := make([]scheduling.SalesOrder, 0, len(raw))
	for _, d := range raw {
		so := d.toDomain()
		if status == "" || so.Status == status {
			orders = append(orders, so)
		}
	}
	return orders, nil
}

// GetSalesOrder fetches one sales order in full detail.
func (c *Client) GetSalesOrder(ctx context.Context, id string) (*scheduling.SalesOrder, error) {
	var raw salesOrderDTO
	if err := c.do(ctx, "get_sales_order", http.MethodGet, "/sales/order/"+id, nil, &raw); err != nil {
		return nil, err
	}
	so := raw.toDomain()
	return &so, nil
}

// updateSalesOrder does the API's read-modify-write dance: fetch the full
// document, patch fields, PUT it back (the document carries the version
// the API needs for optimistic locking).
func (c *Client) updateSalesOrder(ctx context.Context, id string, patch map[string]any) error {
	var doc map[string]any
	if err := c.do(ctx, "update_sales_order", http.MethodGet, "/sales/order/"+id, nil, &doc); err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	return c.do(ctx, "update_sales_order", http.MethodPut, "/sales/order/"+id, doc, nil)
}

// UpdateSalesOrderPriority sets a new priority on the order.
func (c *Client) UpdateSalesOrderPriority(ctx context.Context, id string, priority int) error {
	return c.updateSalesOrder(ctx, id, map[string]any{"priority": priority})
}

// UpdateSalesOrderStatus transitions the order's lifecycle state.
func (c *Client) UpdateSalesOrderStatus(ctx context.Context, id string, status scheduling.OrderStatus) error {
	return c.updateSalesOrder(ctx, id, map[string]any{"status": string(status)})
}

// --- Products ---

// GetProducts returns the product catalog keyed by product code.
func (c *Client) GetProducts(ctx context.Context) (map[string]scheduling.Product, error) {
	var raw []productDTO
	if err := c.do(ctx, "get_products", http.MethodGet, "/product/product", nil, &raw); err != nil {
		return nil, err
	}
	products := make(map[string]scheduling.Product, len(raw))
	for _, d := range raw {
		p := d.toDomain()
		if p.Code != "" {
			products[p.Code] = p
		}
	}
	return products, nil
}

// --- Production Orders ---

// CreateProductionOrder creates a draft PO for the given product window.
func (c *Client) CreateProductionOrder(ctx context.Context, productID string, quantity int, start, end time.Time) (*scheduling.ProductionOrder, error) {
	var raw productionOrderDTO
	err := c.do(ctx, "create_production_order", http.MethodPut, "/product/production", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"starts_at":  start.UTC().Format(wireTimeFormat),
		"ends_at":    end.UTC().Format(wireTimeFormat),
	}, &raw)
	if err != nil {
		return nil, err
	}
	po := raw.toDomain()
	return &po, nil
}

// GetProductionOrder fetches one PO with its phases.
func (c *Client) GetProductionOrder(ctx context.Context, id string) (*scheduling.ProductionOrder, error) {
	var raw productionOrderDTO
	if err := c.do(ctx, "get_production_order", http.MethodGet, "/product/production/"+id, nil, &raw); err != nil {
		return nil, err
	}
	po := raw.toDomain()
	return &po, nil
}

// ScheduleProductionOrder asks the system of record to materialise the
// PO's phases from the product BOM, then returns the refreshed PO.
func (c *Client) ScheduleProductionOrder(ctx context.Context, id string) (*scheduling.ProductionOrder, error) {
	if err := c.do(ctx, "schedule_production_order", http.MethodPost, "/product/production/"+id+"/_schedule", nil, nil); err != nil {
		return nil, err
	}
	return c.GetProductionOrder(ctx, id)
}

// ConfirmProductionOrder transitions the PO to ready for execution.
func (c *Client) ConfirmProductionOrder(ctx context.Context, id string) error {
	return c.do(ctx, "confirm_production_order", http.MethodPost, "/product/production/"+id+"/_start", nil, nil)
}

// DeleteProductionOrder removes the PO from the system of record.
func (c *Client) DeleteProductionOrder(ctx context.Context, id string) error {
	return c.do(ctx, "delete_production_order", http.MethodDelete, "/product/production/"+id, nil, nil)
}

// UpdatePOWindow writes the PO's planned start and end.
func (c *Client) UpdatePOWindow(ctx context.Context, id string, start, end time.Time) error {
	err := c.do(ctx, "update_po_window", http.MethodPost, "/product/production/"+id+"/_update_starting_date",
		map[string]string{"starts_at": start.UTC().Format(wireTimeFormat)}, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, "update_po_window", http.MethodPost, "/product/production/"+id+"/_update_ending_date",
		map[string]string{"ends_at": end.UTC().Format(wireTimeFormat)}, nil)
}

// UpdatePhaseWindow writes one phase's planned window. The ending date
// goes first: the API validates start < end against the current values.
func (c *Client) UpdatePhaseWindow(ctx context.Context, phaseID string, start, end time.Time) error {
	err := c.do(ctx, "update_phase_window", http.MethodPost, "/product/production-order-phase/"+phaseID+"/_update_ending_date",
		map[string]string{"ends_at": end.UTC().Format(wireTimeFormat)}, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, "update_phase_window", http.MethodPost, "/product/production-order-phase/"+phaseID+"/_update_starting_date",
		map[string]string{"starts_at": start.UTC().Format(wireTimeFormat)}, nil)
}

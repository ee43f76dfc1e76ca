// Package httpapi talks to the remote booking service over HTTP. Calls run
// through a circuit breaker so a flapping backend trips fast instead of
// stacking up timeouts.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/domain/booking"
)

type Client struct {
	hc      *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
}

func New(baseURL string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "booking-backend",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 4
			},
		}),
	}
}

// Ping checks reachability; the network monitor polls it.
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return backend.Errf(backend.KindNetwork, "health check returned status %d", status)
	}
	return nil
}

func (c *Client) Create(ctx context.Context, r booking.Reservation) (booking.Reservation, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/reservations", r)
	if err != nil {
		return booking.Reservation{}, err
	}
	return decodeReservation(status, body)
}

func (c *Client) Update(ctx context.Context, id string, patch booking.Patch) (booking.Reservation, error) {
	status, body, err := c.do(ctx, http.MethodPatch, "/api/reservations/"+url.PathEscape(id), patch)
	if err != nil {
		return booking.Reservation{}, err
	}
	return decodeReservation(status, body)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/api/reservations/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return statusError(status, body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("httpapi: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	type result struct {
		status int
		body   []byte
	}
	res, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is the caller's problem.
		if resp.StatusCode >= 500 {
			return result{resp.StatusCode, body}, fmt.Errorf("server status %d", resp.StatusCode)
		}
		return result{resp.StatusCode, body}, nil
	})
	if err != nil {
		if r, ok := res.(result); ok {
			return r.status, r.body, &backend.Error{Kind: backend.KindNetwork, Err: err}
		}
		return 0, nil, &backend.Error{Kind: backend.KindNetwork, Err: err}
	}
	r := res.(result)
	return r.status, r.body, nil
}

func decodeReservation(status int, body []byte) (booking.Reservation, error) {
	if status >= 400 {
		return booking.Reservation{}, statusError(status, body)
	}
	var r booking.Reservation
	if err := json.Unmarshal(body, &r); err != nil {
		return booking.Reservation{}, fmt.Errorf("httpapi: decode reservation: %w", err)
	}
	return r, nil
}

// statusError maps an HTTP status to the backend error taxonomy, keeping the
// server's message when one is present.
func statusError(status int, body []byte) error {
	var msg struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &msg)
	if msg.Message == "" {
		msg.Message = fmt.Sprintf("status %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return backend.Errf(backend.KindPermission, "%s", msg.Message)
	case status == http.StatusConflict:
		return backend.Errf(backend.KindConflict, "%s", msg.Message)
	case status >= 400 && status < 500:
		return backend.Errf(backend.KindValidation, "%s", msg.Message)
	default:
		return backend.Errf(backend.KindNetwork, "%s", msg.Message)
	}
}

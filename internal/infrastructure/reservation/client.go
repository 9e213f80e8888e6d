// Package reservation talks to the numbering authority: the device-side
// HTTP client and the server-side Postgres authority it calls.
package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldledger/internal/core/numerator"
)

// ReservePath is the authority endpoint, relative to the base URL.
const ReservePath = "/api/v1/numbering/reservations"

// ReserveRequest is the body of a reservation call.
type ReserveRequest struct {
	OrgID string         `json:"orgId"`
	Kind  numerator.Kind `json:"kind"`
	Count int            `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client reserves number blocks over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the authority at baseURL. A zero timeout
// means 10 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: timeout},
	}
}

// Reserve asks for count numbers. Transport failures wrap
// numerator.ErrOffline; any non-2xx answer is a *numerator.RejectedError.
func (c *Client) Reserve(ctx context.Context, orgID string, kind numerator.Kind, count int) (numerator.Range, error) {
	if c.baseURL == "" {
		return numerator.Range{}, fmt.Errorf("%w: no authority configured", numerator.ErrOffline)
	}

	body, err := json.Marshal(ReserveRequest{OrgID: orgID, Kind: kind, Count: count})
	if err != nil {
		return numerator.Range{}, fmt.Errorf("marshal reservation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ReservePath, bytes.NewReader(body))
	if err != nil {
		return numerator.Range{}, fmt.Errorf("build reservation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return numerator.Range{}, fmt.Errorf("%w: %v", numerator.ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rejected := &numerator.RejectedError{StatusCode: resp.StatusCode}
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &apiErr) == nil {
			rejected.Code = apiErr.Code
			rejected.Message = apiErr.Message
		}
		if rejected.Message == "" {
			rejected.Message = http.StatusText(resp.StatusCode)
		}
		return numerator.Range{}, rejected
	}

	var rng numerator.Range
	if err := json.NewDecoder(resp.Body).Decode(&rng); err != nil {
		return numerator.Range{}, &numerator.RejectedError{
			StatusCode: resp.StatusCode,
			Code:       "INVALID_RESPONSE",
			Message:    err.Error(),
		}
	}
	if rng.Start <= 0 || rng.End < rng.Start {
		return numerator.Range{}, &numerator.RejectedError{
			StatusCode: resp.StatusCode,
			Code:       "INVALID_RANGE",
			Message:    fmt.Sprintf("range [%d, %d]", rng.Start, rng.End),
		}
	}
	return rng, nil
}

// IsRejected reports whether err is an answer from the authority rather
// than a connectivity problem.
func IsRejected(err error) bool {
	var rejected *numerator.RejectedError
	return errors.As(err, &rejected)
}

var _ numerator.Reserver = (*Client)(nil)

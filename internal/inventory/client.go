package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// Client is the HTTP client for the inventory system of record. The gateway
// forwards commands and reflects status; it never decides whether an
// operation is valid.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given API base URL, e.g.
// "http://inventory:8080/api/v1".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// operationBody is the JSON command sent to the inventory service. Operator
// and shelf identifiers come from the requester's session, never from the
// raw client payload.
type operationBody struct {
	MaterialID string `json:"material_id,omitempty"`
	SlotID     string `json:"slot_id,omitempty"`
	FromSlotID string `json:"from_slot_id,omitempty"`
	ToSlotID   string `json:"to_slot_id,omitempty"`
	ShelfID    string `json:"shelf_id"`
	OperatorID string `json:"operator_id"`
}

// PlaceMaterial forwards a placement command.
func (c *Client) PlaceMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error) {
	return c.postOperation(ctx, "/materials/place", req, shelfID, operatorID)
}

// RemoveMaterial forwards a removal command.
func (c *Client) RemoveMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error) {
	return c.postOperation(ctx, "/materials/remove", req, shelfID, operatorID)
}

// MoveMaterial forwards a move command.
func (c *Client) MoveMaterial(ctx context.Context, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error) {
	return c.postOperation(ctx, "/materials/move", req, shelfID, operatorID)
}

func (c *Client) postOperation(ctx context.Context, path string, req *types.OperationRequest, shelfID, operatorID string) (interface{}, error) {
	body := operationBody{
		MaterialID: req.MaterialID,
		SlotID:     req.SlotID,
		FromSlotID: req.FromSlotID,
		ToSlotID:   req.ToSlotID,
		ShelfID:    shelfID,
		OperatorID: operatorID,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, path)
}

// GetShelfStatus fetches the authoritative snapshot for a shelf.
func (c *Client) GetShelfStatus(ctx context.Context, shelfID string) (*types.ShelfStatus, error) {
	url := fmt.Sprintf("%s/shelves/%s/status", c.baseURL, shelfID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: shelf status %s returned %d", interfaces.ErrUpstreamUnavailable, shelfID, resp.StatusCode)
	}

	var status types.ShelfStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: invalid shelf status body: %v", interfaces.ErrUpstreamUnavailable, err)
	}
	if status.ShelfID == "" {
		status.ShelfID = shelfID
	}
	return &status, nil
}

// decodeResponse turns an operation response into a generic result. Non-2xx
// responses carry the upstream's error message when one is present.
func decodeResponse(resp *http.Response, path string) (interface{}, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", interfaces.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var upstream struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &upstream)
		reason := upstream.Error
		if reason == "" {
			reason = upstream.Message
		}
		if reason == "" {
			reason = fmt.Sprintf("%s returned %d", path, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUpstreamUnavailable, reason)
	}

	var result interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("%w: invalid response body: %v", interfaces.ErrUpstreamUnavailable, err)
		}
	}
	return result, nil
}

// Package remote talks to the school's remote store: a single JSON
// request/response endpoint that serves the full state, the virtual office's
// pending payments, and accepts full-state pushes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

// ErrTransport marks every failure to reach or understand the remote store.
var ErrTransport = errors.New("remote store unavailable")

type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for endpoint. Requests time out after timeout
// (5s when zero) so a slow store never stalls a sync.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

// FetchSnapshot returns the whole remote state.
func (c *Client) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	body, err := c.get(ctx, "snapshot")
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("%w: decode snapshot: %v", ErrTransport, err)
	}
	return snap, nil
}

// FetchPending returns the virtual office rows as loosely-typed records.
// Both a bare array and an envelope {"data": [...]} are accepted. Numbers
// are kept as json.Number so amounts are not rounded through float64.
func (c *Client) FetchPending(ctx context.Context) ([]map[string]any, error) {
	body, err := c.get(ctx, "pending")
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: decode pending envelope: %v", ErrTransport, err)
		}
		trimmed = envelope.Data
	}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return []map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode pending rows: %v", ErrTransport, err)
	}
	return rows, nil
}

// Push sends the full state to the remote store.
func (c *Client) Push(ctx context.Context, snap domain.Snapshot) error {
	// 1. Convert Payload to JSON
	jsonData, err := json.Marshal(map[string]any{"action": "push", "state": snap})
	if err != nil {
		return err
	}

	// 2. Prepare Request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ColegioPay-Sync/1.0")

	// 3. Send and check the response
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("%w: push returned %d", ErrTransport, resp.StatusCode)
}

func (c *Client) get(ctx context.Context, action string) ([]byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint: %v", ErrTransport, err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ColegioPay-Sync/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransport, action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrTransport, action, resp.StatusCode)
	}
	return body, nil
}

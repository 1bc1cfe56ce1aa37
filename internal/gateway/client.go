// Package gateway is the HTTP client for the bot gateway, the external
// collaborator that reaches users where they actually are: it delivers
// DM-style push notifications and answers role-membership questions.
// Delivery is best-effort by contract; the dispatcher treats every
// error from this package as log-and-continue.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notice is one push notification.  Color is a hex string the gateway
// renders as the embed accent; Link, when set, makes the notice open
// the web panel.
type Notice struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Color  string `json:"color,omitempty"`
	Author string `json:"author,omitempty"`
	Image  string `json:"image,omitempty"`
	Link   string `json:"link,omitempty"`
}

// Client talks to the bot gateway over HTTP.  All calls carry a
// bounded timeout; the gateway being down must never wedge a request
// or the dispatcher loop.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client for the gateway at baseURL.  token may be empty
// when the gateway does not require authentication.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// SendDM delivers a notice to a single user.  A non-2xx response is
// an error; the caller decides whether that aborts anything (the
// dispatcher never lets it).
func (c *Client) SendDM(ctx context.Context, userID string, n Notice) error {
	payload := map[string]any{
		"user_id": userID,
		"notice":  n,
	}
	return c.post(ctx, "/api/dm", payload, nil)
}

// HasRole asks whether the user currently holds the given role in the
// community.  Errors (gateway unreachable, unknown user) are returned
// to the caller, which must treat them as "capability unknown" and
// fail closed.
func (c *Client) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	var out struct {
		HasRole bool `json:"has_role"`
	}
	path := fmt.Sprintf("/api/members/%s/roles/%s", userID, roleID)
	if err := c.get(ctx, path, &out); err != nil {
		return false, err
	}
	return out.HasRole, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}

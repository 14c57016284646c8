// Package reqmgr is the HTTP client for the remote workflow management
// service (ReqMgr2). It implements secondary.WorkflowManager.
package reqmgr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one ReqMgr2 instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Submit implements secondary.WorkflowManager. The assigned workflow
// name comes back in the first result entry.
func (c *Client) Submit(ctx context.Context, job map[string]any) (string, error) {
	var resp struct {
		Result []struct {
			Request string `json:"request"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/reqmgr2/data/request", job, &resp); err != nil {
		return "", err
	}
	if len(resp.Result) == 0 || resp.Result[0].Request == "" {
		return "", fmt.Errorf("submission response carries no workflow name")
	}
	return resp.Result[0].Request, nil
}

// Reject implements secondary.WorkflowManager.
func (c *Client) Reject(ctx context.Context, name string) error {
	body := map[string]any{"RequestStatus": "rejected"}
	return c.do(ctx, http.MethodPut, "/reqmgr2/data/request/"+url.PathEscape(name), body, nil)
}

// SetPriority implements secondary.WorkflowManager.
func (c *Client) SetPriority(ctx context.Context, name string, priority int) error {
	body := map[string]any{"RequestPriority": priority}
	return c.do(ctx, http.MethodPut, "/reqmgr2/data/request/"+url.PathEscape(name), body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Package dbs is the client for the dataset bookkeeping service. It
// implements secondary.DatasetCatalog.
package dbs

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

	"github.com/example/reproc/internal/ports/secondary"
)

// Client talks to one DBS reader instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Runs implements secondary.DatasetCatalog.
func (c *Client) Runs(ctx context.Context, dataset string) ([]int, error) {
	endpoint := "/dbs/prod/global/DBSReader/runs?dataset=" + url.QueryEscape(dataset)
	var resp []struct {
		RunNum []int `json:"run_num"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, nil
	}
	return resp[0].RunNum, nil
}

// Datasets implements secondary.DatasetCatalog.
func (c *Client) Datasets(ctx context.Context, pattern string) ([]secondary.CatalogDataset, error) {
	if pattern == "" {
		return nil, nil
	}
	body := map[string]any{"dataset": pattern, "detail": 1}
	var resp []struct {
		Dataset           string `json:"dataset"`
		DatasetAccessType string `json:"dataset_access_type"`
	}
	if err := c.do(ctx, http.MethodPost, "/dbs/prod/global/DBSReader/datasetlist", body, &resp); err != nil {
		return nil, err
	}
	datasets := make([]secondary.CatalogDataset, 0, len(resp))
	for _, d := range resp {
		datasets = append(datasets, secondary.CatalogDataset{
			Name:       d.Dataset,
			AccessType: d.DatasetAccessType,
		})
	}
	return datasets, nil
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
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

// Package certification fetches run-certification documents: JSON
// objects keyed by run number. It implements
// secondary.CertificationClient.
package certification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client fetches certification documents below one base URL.
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

// CertifiedRuns implements secondary.CertificationClient. The document
// keys are the certified run numbers.
func (c *Client) CertifiedRuns(ctx context.Context, path string) ([]int, error) {
	endpoint := c.BaseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding certification document %s: %w", path, err)
	}
	runs := make([]int, 0, len(doc))
	for key := range doc {
		run, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("certification document %s has a non-numeric run %q", path, key)
		}
		runs = append(runs, run)
	}
	sort.Ints(runs)
	return runs, nil
}

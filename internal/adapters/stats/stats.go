// Package stats is the client for the workflow statistics service: a
// CouchDB holding one document per workflow, plus an out-of-band refresh
// that runs the service's update script over SSH. It implements
// secondary.StatsClient.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	corerequest "github.com/example/reproc/internal/core/request"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// Client talks to one statistics database.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Refresh configuration: the executor runs the update script on the
	// statistics host.
	Executor    secondary.RemoteExecutor
	RefreshHost string
	ScriptDir   string
}

func New(baseURL string, executor secondary.RemoteExecutor, refreshHost, scriptDir string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		Executor:    executor,
		RefreshHost: refreshHost,
		ScriptDir:   scriptDir,
	}
}

// workflowDocument is the stored shape of one workflow.
type workflowDocument struct {
	RequestName        string   `json:"RequestName"`
	RequestType        string   `json:"RequestType"`
	RequestPriority    *int     `json:"RequestPriority"`
	TotalEvents        *int64   `json:"TotalEvents"`
	OutputDatasets     []string `json:"OutputDatasets"`
	EventNumberHistory []struct {
		Datasets map[string]struct {
			Type   string `json:"Type"`
			Events int64  `json:"Events"`
		} `json:"Datasets"`
		Time int64 `json:"Time"`
	} `json:"EventNumberHistory"`
	RequestTransition []struct {
		Status     string `json:"Status"`
		UpdateTime int64  `json:"UpdateTime"`
	} `json:"RequestTransition"`
}

// WorkflowNames implements secondary.StatsClient via the prepid view.
func (c *Client) WorkflowNames(ctx context.Context, prepid string) ([]string, error) {
	endpoint := fmt.Sprintf(
		"/requests/_design/_designDoc/_view/prepids?key=%s&include_docs=True",
		url.QueryEscape(fmt.Sprintf("%q", prepid)),
	)
	var resp struct {
		Rows []struct {
			Doc workflowDocument `json:"doc"`
		} `json:"rows"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row.Doc.RequestName != "" {
			names = append(names, row.Doc.RequestName)
		}
	}
	return names, nil
}

// Workflow implements secondary.StatsClient. Unknown workflows yield nil.
func (c *Client) Workflow(ctx context.Context, name string) (*corerequest.RemoteWorkflow, error) {
	var doc workflowDocument
	err := c.get(ctx, "/requests/"+url.PathEscape(name), &doc)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if doc.RequestName == "" {
		return nil, nil
	}

	workflow := &corerequest.RemoteWorkflow{
		Name:           doc.RequestName,
		Type:           doc.RequestType,
		Priority:       doc.RequestPriority,
		TotalEvents:    doc.TotalEvents,
		OutputDatasets: doc.OutputDatasets,
	}
	for _, entry := range doc.EventNumberHistory {
		datasets := make(map[string]corerequest.DatasetEvents, len(entry.Datasets))
		for name, d := range entry.Datasets {
			datasets[name] = corerequest.DatasetEvents{Type: d.Type, Events: d.Events}
		}
		workflow.EventHistory = append(workflow.EventHistory, corerequest.EventHistoryEntry{Datasets: datasets})
	}
	for _, transition := range doc.RequestTransition {
		workflow.StatusHistory = append(workflow.StatusHistory, models.StatusEntry{
			Status: transition.Status,
			Time:   transition.UpdateTime,
		})
	}
	return workflow, nil
}

// ForceRefresh implements secondary.StatsClient by running the update
// script on the statistics host, once per workflow name.
func (c *Client) ForceRefresh(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if c.Executor == nil || c.RefreshHost == "" {
		return fmt.Errorf("stats refresh is not configured")
	}
	commands := []string{
		"cd " + c.ScriptDir,
	}
	for _, name := range names {
		commands = append(commands, fmt.Sprintf("python3 stats_update.py --action update --name %s", name))
	}
	if err := c.Executor.Execute(ctx, c.RefreshHost, commands); err != nil {
		return fmt.Errorf("refreshing %d workflows: %w", len(names), err)
	}
	return nil
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return err
	}
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
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

package secondary

import (
	"context"

	"github.com/example/reproc/internal/core/request"
)

// WorkflowManager is the remote workflow management service: it accepts
// job descriptions and mutates submitted jobs by name.
type WorkflowManager interface {
	// Submit sends a job description and returns the assigned workflow name.
	Submit(ctx context.Context, job map[string]any) (string, error)
	// Reject cancels a submitted workflow.
	Reject(ctx context.Context, name string) error
	// SetPriority changes the priority of a submitted workflow.
	SetPriority(ctx context.Context, name string, priority int) error
}

// StatsClient is the remote statistics service tracking submitted
// workflows. It is eventually consistent with the workflow manager;
// ForceRefresh asks it to re-pull the named workflows out of band.
type StatsClient interface {
	// WorkflowNames returns the names of the workflows the service
	// currently associates with a request identifier.
	WorkflowNames(ctx context.Context, prepid string) ([]string, error)
	// Workflow fetches the full detail of one workflow by name.
	Workflow(ctx context.Context, name string) (*request.RemoteWorkflow, error)
	// ForceRefresh triggers an out-of-band refresh of the named workflows.
	ForceRefresh(ctx context.Context, names []string) error
}

// CatalogDataset is one dataset known to the dataset catalog.
type CatalogDataset struct {
	Name       string
	AccessType string
}

// DatasetCatalog is the remote dataset catalog.
type DatasetCatalog interface {
	// Runs returns the run numbers present in a dataset.
	Runs(ctx context.Context, dataset string) ([]int, error)
	// Datasets lists datasets matching a name pattern.
	Datasets(ctx context.Context, pattern string) ([]CatalogDataset, error)
}

// CertificationClient fetches certified run numbers for a given
// certification document path.
type CertificationClient interface {
	CertifiedRuns(ctx context.Context, path string) ([]int, error)
}

// RemoteExecutor runs shell commands on a named remote host. Used for
// out-of-band service maintenance that has no API, like forcing the
// statistics service to refresh.
type RemoteExecutor interface {
	Execute(ctx context.Context, host string, commands []string) error
}

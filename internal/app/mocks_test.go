package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/micromdm/nanolib/log"

	"github.com/example/reproc/internal/adapters/store/inmem"
	corerequest "github.com/example/reproc/internal/core/request"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

type mockWorkflowManager struct {
	mu         sync.Mutex
	serial     int
	submitted  []map[string]any
	rejected   []string
	priorities map[string]int
	submitErr  error
	rejectErr  error
}

func newMockWorkflowManager() *mockWorkflowManager {
	return &mockWorkflowManager{priorities: make(map[string]int)}
}

func (m *mockWorkflowManager) Submit(ctx context.Context, job map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.serial++
	m.submitted = append(m.submitted, job)
	return fmt.Sprintf("reqmgr_workflow_%d", m.serial), nil
}

func (m *mockWorkflowManager) Reject(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectErr != nil {
		return m.rejectErr
	}
	m.rejected = append(m.rejected, name)
	return nil
}

func (m *mockWorkflowManager) SetPriority(ctx context.Context, name string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priorities[name] = priority
	return nil
}

type mockStatsClient struct {
	mu        sync.Mutex
	names     map[string][]string
	workflows map[string]*corerequest.RemoteWorkflow
	refreshed [][]string
}

func newMockStatsClient() *mockStatsClient {
	return &mockStatsClient{
		names:     make(map[string][]string),
		workflows: make(map[string]*corerequest.RemoteWorkflow),
	}
}

func (m *mockStatsClient) WorkflowNames(ctx context.Context, prepid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names[prepid]...), nil
}

func (m *mockStatsClient) Workflow(ctx context.Context, name string) (*corerequest.RemoteWorkflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workflows[name], nil
}

func (m *mockStatsClient) ForceRefresh(ctx context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, append([]string(nil), names...))
	return nil
}

// setWorkflow registers a workflow detail known to the stats service and
// associates it with a request identifier.
func (m *mockStatsClient) setWorkflow(prepid string, w corerequest.RemoteWorkflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[prepid] = append(m.names[prepid], w.Name)
	m.workflows[w.Name] = &w
}

type mockDatasetCatalog struct {
	runs     map[string][]int
	datasets []secondary.CatalogDataset
	runsErr  error
}

func newMockDatasetCatalog() *mockDatasetCatalog {
	return &mockDatasetCatalog{runs: make(map[string][]int)}
}

func (m *mockDatasetCatalog) Runs(ctx context.Context, dataset string) ([]int, error) {
	if m.runsErr != nil {
		return nil, m.runsErr
	}
	return m.runs[dataset], nil
}

func (m *mockDatasetCatalog) Datasets(ctx context.Context, pattern string) ([]secondary.CatalogDataset, error) {
	return m.datasets, nil
}

type mockCertificationClient struct {
	runs map[string][]int
}

func newMockCertificationClient() *mockCertificationClient {
	return &mockCertificationClient{runs: make(map[string][]int)}
}

func (m *mockCertificationClient) CertifiedRuns(ctx context.Context, path string) ([]int, error) {
	return m.runs[path], nil
}

type testEnv struct {
	opener       *inmem.Opener
	locks        *locker.Locker
	wm           *mockWorkflowManager
	stats        *mockStatsClient
	catalog      *mockDatasetCatalog
	cert         *mockCertificationClient
	subcampaigns *SubcampaignService
	requests     *RequestService
	chains       *ChainedRequestService
	tickets      *TicketService
}

const (
	testSubcampaign  = "Run2024A_19Nov2024"
	testCertPath     = "Collisions24/certified.json"
	testInputDataset = "/ZeroBias/Run2024A-v1/RAW"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		opener:  inmem.NewOpener(),
		locks:   locker.New(),
		wm:      newMockWorkflowManager(),
		stats:   newMockStatsClient(),
		catalog: newMockDatasetCatalog(),
		cert:    newMockCertificationClient(),
	}
	logger := log.NopLogger

	var err error
	env.subcampaigns, err = NewSubcampaignService(env.opener, env.locks, logger)
	if err != nil {
		t.Fatal(err)
	}
	env.requests, err = NewRequestService(
		env.opener, env.subcampaigns, env.wm, env.stats, env.catalog, env.cert, env.locks, logger)
	if err != nil {
		t.Fatal(err)
	}
	env.chains, err = NewChainedRequestService(env.opener, env.requests, env.locks, logger)
	if err != nil {
		t.Fatal(err)
	}
	env.tickets, err = NewTicketService(
		env.opener, env.requests, env.chains, env.subcampaigns, env.catalog, env.locks,
		[]string{"Commissioning"}, logger)
	if err != nil {
		t.Fatal(err)
	}

	sub := &models.Subcampaign{
		Release:      "CMSSW_14_0_0",
		ScramArch:    "el8_amd64_gcc12",
		Memory:       16000,
		Energy:       13.6,
		RunsJSONPath: testCertPath,
		Sequences: []models.Sequence{{
			Conditions:   "140X_dataRun3_Prompt_v2",
			Datatier:     []string{"AOD", "DQMIO"},
			EventContent: []string{"AOD", "DQM"},
			NThreads:     8,
			ConfigID:     "cfg-base",
		}},
	}
	sub.PrepID = testSubcampaign
	if _, err := env.subcampaigns.Create(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return env
}

// createRequest creates a request on the standard input dataset with runs.
func (env *testEnv) createRequest(t *testing.T) *models.Request {
	t.Helper()
	req, err := env.requests.Create(context.Background(), CreateRequestInput{
		Subcampaign:      testSubcampaign,
		ProcessingString: "19Nov2024",
		InputDataset:     testInputDataset,
		Runs:             []int{100, 200},
		TimePerEvent:     1.5,
		SizePerEvent:     2048,
	})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

// forceStatus moves a request to the given status directly in the store.
func (env *testEnv) forceStatus(t *testing.T, prepid string, status corerequest.Status) *models.Request {
	t.Helper()
	ctx := context.Background()
	req, err := env.requests.Get(ctx, prepid)
	if err != nil {
		t.Fatal(err)
	}
	req.Status = string(status)
	if err := saveEntity(ctx, env.requests.store, req); err != nil {
		t.Fatal(err)
	}
	return req
}

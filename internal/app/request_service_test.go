package app

import (
	"context"
	"errors"
	"testing"

	corerequest "github.com/example/reproc/internal/core/request"
	"github.com/example/reproc/internal/models"
)

func TestCreateRequest(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	if req.PrepID != "ReReco-Run2024A-ZeroBias-19Nov2024-00001" {
		t.Errorf("prepid: have %s", req.PrepID)
	}
	if req.Status != "new" {
		t.Errorf("status: have %s, want new", req.Status)
	}
	if req.Release != "CMSSW_14_0_0" {
		t.Errorf("release not seeded from subcampaign: have %s", req.Release)
	}
	if req.Memory != 16000 {
		t.Errorf("memory not seeded from subcampaign: have %d", req.Memory)
	}
	if len(req.Sequences) != 1 || req.Sequences[0].Conditions != "140X_dataRun3_Prompt_v2" {
		t.Errorf("sequences not seeded from subcampaign: %v", req.Sequences)
	}
	if req.Priority != DefaultPriority {
		t.Errorf("priority: have %d, want %d", req.Priority, DefaultPriority)
	}
	if len(req.History) != 1 || req.History[0].Action != "create" {
		t.Errorf("history: %v", req.History)
	}

	second := env.createRequest(t)
	if second.PrepID != "ReReco-Run2024A-ZeroBias-19Nov2024-00002" {
		t.Errorf("serial did not advance: have %s", second.PrepID)
	}
}

func TestCreateRequestUnknownSubcampaign(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.requests.Create(context.Background(), CreateRequestInput{
		Subcampaign:      "Run9999X_Nowhere",
		ProcessingString: "19Nov2024",
		InputDataset:     testInputDataset,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("have %v, want ErrNotFound", err)
	}
}

func TestUpdateRequestNoChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	same, err := env.requests.Update(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(same.History) != 1 {
		t.Errorf("no-op update touched history: %v", same.History)
	}
}

func TestUpdateRequestRecordsChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	req.TimePerEvent = 3.0
	req.Memory = 18000
	updated, err := env.requests.Update(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	last := updated.History[len(updated.History)-1]
	if last.Action != "update" {
		t.Fatalf("history action: have %s, want update", last.Action)
	}
	changed, ok := last.Data.([]string)
	if !ok {
		t.Fatalf("history data type: %T", last.Data)
	}
	want := map[string]bool{"time_per_event": true, "memory": true}
	if len(changed) != 2 || !want[changed[0]] || !want[changed[1]] {
		t.Errorf("changed paths: %v", changed)
	}
}

func TestUpdateForbiddenWhileSubmitting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	env.forceStatus(t, req.PrepID, corerequest.StatusSubmitting)

	req.Memory = 18000
	if _, err := env.requests.Update(ctx, req); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("have %v, want ErrValidationFailed", err)
	}
}

func TestUpdateCannotChangeStatus(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	req.Status = "approved"
	if _, err := env.requests.Update(context.Background(), req); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("have %v, want ErrValidationFailed", err)
	}
}

func TestNextStatusRequiresRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req, err := env.requests.Create(ctx, CreateRequestInput{
		Subcampaign:      testSubcampaign,
		ProcessingString: "19Nov2024",
		InputDataset:     testInputDataset,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.requests.NextStatus(ctx, req.PrepID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("have %v, want ErrInvalidTransition", err)
	}
}

func TestNextAndPreviousStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	advanced, err := env.requests.NextStatus(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if advanced.Status != "approved" {
		t.Errorf("status: have %s, want approved", advanced.Status)
	}
	last := advanced.History[len(advanced.History)-1]
	if last.Action != "status" || last.Data != "approved" {
		t.Errorf("history: %+v", last)
	}

	back, err := env.requests.PreviousStatus(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if back.Status != "new" {
		t.Errorf("status: have %s, want new", back.Status)
	}

	if _, err := env.requests.PreviousStatus(ctx, req.PrepID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retreat from new: have %v, want ErrInvalidTransition", err)
	}
}

func TestNextStatusBusy(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	release := env.locks.Acquire(req.PrepID)
	defer release()

	if _, err := env.requests.NextStatus(context.Background(), req.PrepID); !errors.Is(err, ErrBusy) {
		t.Errorf("have %v, want ErrBusy", err)
	}
}

func TestSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	env.forceStatus(t, req.PrepID, corerequest.StatusSubmitting)

	if err := env.requests.submitQueued(ctx, req.PrepID); err != nil {
		t.Fatal(err)
	}
	submitted, err := env.requests.Get(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if submitted.Status != "submitted" {
		t.Errorf("status: have %s, want submitted", submitted.Status)
	}
	if len(env.wm.submitted) != 1 {
		t.Fatalf("workflow manager saw %d submissions", len(env.wm.submitted))
	}
	job := env.wm.submitted[0]
	if job["PrepID"] != req.PrepID {
		t.Errorf("job prepid: %v", job["PrepID"])
	}
	if job["RequestType"] != "ReReco" {
		t.Errorf("job request type: %v", job["RequestType"])
	}
	if len(submitted.Workflows) != 1 || submitted.Workflows[0].Name != "reqmgr_workflow_1" {
		t.Errorf("workflows: %v", submitted.Workflows)
	}
	found := false
	for _, entry := range submitted.History {
		if entry.Action == "submission" && entry.Data == "reqmgr_workflow_1" {
			found = true
		}
	}
	if !found {
		t.Errorf("no submission history entry: %v", submitted.History)
	}
}

func TestSubmissionFailureReturnsToApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	env.forceStatus(t, req.PrepID, corerequest.StatusSubmitting)
	env.wm.submitErr = errors.New("reqmgr is down")

	if err := env.requests.submitQueued(ctx, req.PrepID); err == nil {
		t.Fatal("expected an error")
	}
	failed, err := env.requests.Get(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != "approved" {
		t.Errorf("status: have %s, want approved", failed.Status)
	}
	found := false
	for _, entry := range failed.History {
		if entry.Action == "submission_failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("no submission_failed history entry: %v", failed.History)
	}
}

func TestSubmissionSkipsMovedRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	if err := env.requests.submitQueued(ctx, req.PrepID); err != nil {
		t.Fatal(err)
	}
	if len(env.wm.submitted) != 0 {
		t.Errorf("submitted a request in status new")
	}
}

func TestRetreatFromSubmittedRejectsWorkflows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	req = env.forceStatus(t, req.PrepID, corerequest.StatusSubmitted)
	req.Workflows = []models.Workflow{{
		Name:          "reqmgr_workflow_1",
		Type:          "ReReco",
		StatusHistory: []models.StatusEntry{{Status: "running-open", Time: 1700001000}},
	}}
	if err := saveEntity(ctx, env.requests.store, req); err != nil {
		t.Fatal(err)
	}

	env.stats.setWorkflow(req.PrepID, corerequest.RemoteWorkflow{
		Name: "reqmgr_workflow_1",
		Type: "ReReco",
		StatusHistory: []models.StatusEntry{
			{Status: "assignment-approved", Time: 1700000000},
			{Status: "running-open", Time: 1700001000},
		},
		OutputDatasets: []string{"/ZeroBias/Run2024A-19Nov2024-v1/AOD"},
	})

	back, err := env.requests.PreviousStatus(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if back.Status != "approved" {
		t.Errorf("status: have %s, want approved", back.Status)
	}
	if len(env.wm.rejected) != 1 || env.wm.rejected[0] != "reqmgr_workflow_1" {
		t.Errorf("rejected workflows: %v", env.wm.rejected)
	}
	if len(env.stats.refreshed) != 2 {
		t.Errorf("stats refreshes: have %d, want 2 (before and after reject)", len(env.stats.refreshed))
	}
	if len(back.Workflows) != 0 || len(back.OutputDatasets) != 0 {
		t.Errorf("submission output not reset: %v %v", back.Workflows, back.OutputDatasets)
	}
	if back.TotalEvents != 0 || back.CompletedEvents != 0 {
		t.Errorf("counters not reset: %d %d", back.TotalEvents, back.CompletedEvents)
	}
	for _, seq := range back.Sequences {
		if seq.ConfigID != "" || seq.HarvestingConfigID != "" {
			t.Errorf("config identifiers not cleared: %+v", seq)
		}
	}
}

func TestUpdateWorkflows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	req = env.forceStatus(t, req.PrepID, corerequest.StatusSubmitted)

	priority := 90000
	totalEvents := int64(10000)
	env.stats.setWorkflow(req.PrepID, corerequest.RemoteWorkflow{
		Name:           "reqmgr_workflow_1",
		Type:           "ReReco",
		Priority:       &priority,
		TotalEvents:    &totalEvents,
		OutputDatasets: []string{"/ZeroBias/Run2024A-19Nov2024-v1/AOD"},
		EventHistory: []corerequest.EventHistoryEntry{{
			Datasets: map[string]corerequest.DatasetEvents{
				"/ZeroBias/Run2024A-19Nov2024-v1/AOD": {Type: "VALID", Events: 7500},
			},
		}},
		StatusHistory: []models.StatusEntry{{Status: "running-closed", Time: 1700002000}},
	})

	synced, err := env.requests.UpdateWorkflows(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if len(synced.Workflows) != 1 {
		t.Fatalf("workflows: %v", synced.Workflows)
	}
	if synced.CompletedEvents != 7500 {
		t.Errorf("completed events: have %d, want 7500", synced.CompletedEvents)
	}
	if synced.TotalEvents != 10000 {
		t.Errorf("total events: have %d, want 10000", synced.TotalEvents)
	}
	if synced.Priority != 90000 {
		t.Errorf("priority: have %d, want 90000", synced.Priority)
	}
	last := synced.History[len(synced.History)-1]
	if last.Action != "update_workflows" {
		t.Errorf("history action: have %s, want update_workflows", last.Action)
	}
}

func TestMoveToDone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	req = env.forceStatus(t, req.PrepID, corerequest.StatusSubmitted)

	env.stats.setWorkflow(req.PrepID, corerequest.RemoteWorkflow{
		Name:           "reqmgr_workflow_1",
		Type:           "ReReco",
		OutputDatasets: []string{"/ZeroBias/Run2024A-19Nov2024-v1/AOD"},
		EventHistory: []corerequest.EventHistoryEntry{{
			Datasets: map[string]corerequest.DatasetEvents{
				"/ZeroBias/Run2024A-19Nov2024-v1/AOD": {Type: "VALID", Events: 10000},
			},
		}},
		StatusHistory: []models.StatusEntry{
			{Status: "running-closed", Time: 1700002000},
			{Status: "completed", Time: 1700003000},
		},
	})

	done, err := env.requests.NextStatus(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != "done" {
		t.Errorf("status: have %s, want done", done.Status)
	}
	last := done.History[len(done.History)-1]
	if last.Action != "status" || last.Time != 1700003000 {
		t.Errorf("done timestamp should come from workflow completion: %+v", last)
	}
}

func TestMoveToDoneIncomplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)
	req = env.forceStatus(t, req.PrepID, corerequest.StatusSubmitted)

	env.stats.setWorkflow(req.PrepID, corerequest.RemoteWorkflow{
		Name:           "reqmgr_workflow_1",
		Type:           "ReReco",
		OutputDatasets: []string{"/ZeroBias/Run2024A-19Nov2024-v1/AOD"},
		EventHistory: []corerequest.EventHistoryEntry{{
			Datasets: map[string]corerequest.DatasetEvents{
				"/ZeroBias/Run2024A-19Nov2024-v1/AOD": {Type: "PRODUCTION", Events: 2000},
			},
		}},
		StatusHistory: []models.StatusEntry{{Status: "running-open", Time: 1700002000}},
	})

	if _, err := env.requests.NextStatus(ctx, req.PrepID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("have %v, want ErrInvalidTransition", err)
	}
}

func TestChangePriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	if _, err := env.requests.ChangePriority(ctx, req.PrepID, 95000); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("priority change in status new: have %v, want ErrInvalidTransition", err)
	}

	req = env.forceStatus(t, req.PrepID, corerequest.StatusSubmitted)
	req.Workflows = []models.Workflow{{
		Name:          "reqmgr_workflow_1",
		Type:          "ReReco",
		StatusHistory: []models.StatusEntry{{Status: "running-open", Time: 1700001000}},
	}}
	if err := saveEntity(ctx, env.requests.store, req); err != nil {
		t.Fatal(err)
	}

	changed, err := env.requests.ChangePriority(ctx, req.PrepID, 95000)
	if err != nil {
		t.Fatal(err)
	}
	if changed.Priority != 95000 {
		t.Errorf("priority: have %d, want 95000", changed.Priority)
	}
	if env.wm.priorities["reqmgr_workflow_1"] != 95000 {
		t.Errorf("workflow priorities: %v", env.wm.priorities)
	}
	if len(env.stats.refreshed) != 1 {
		t.Errorf("stats refreshes: have %d, want 1", len(env.stats.refreshed))
	}
}

func TestOptionReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	req.Memory = 999
	req.Sequences[0].Conditions = "edited"
	if _, err := env.requests.Update(ctx, req); err != nil {
		t.Fatal(err)
	}

	reset, err := env.requests.OptionReset(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if reset.Memory != 16000 {
		t.Errorf("memory: have %d, want 16000", reset.Memory)
	}
	if reset.Sequences[0].Conditions != "140X_dataRun3_Prompt_v2" {
		t.Errorf("sequences not reset: %v", reset.Sequences)
	}

	env.forceStatus(t, req.PrepID, corerequest.StatusApproved)
	if _, err := env.requests.OptionReset(ctx, req.PrepID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("have %v, want ErrInvalidTransition", err)
	}
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.catalog.runs[testInputDataset] = []int{1, 2, 3}
	env.cert.runs[testCertPath] = []int{2, 3, 4}

	runs, err := env.requests.Runs(ctx, testSubcampaign, testInputDataset)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0] != 2 || runs[1] != 3 {
		t.Errorf("intersection: have %v, want [2 3]", runs)
	}

	env.cert.runs[testCertPath] = nil
	runs, err = env.requests.Runs(ctx, testSubcampaign, testInputDataset)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("fallback union: have %v, want [1 2 3]", runs)
	}
}

func TestDeleteRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	env.forceStatus(t, req.PrepID, corerequest.StatusApproved)
	if err := env.requests.Delete(ctx, req.PrepID); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("delete of approved request: have %v, want ErrValidationFailed", err)
	}

	env.forceStatus(t, req.PrepID, corerequest.StatusNew)
	if err := env.requests.Delete(ctx, req.PrepID); err != nil {
		t.Fatal(err)
	}
	gone, err := env.requests.Get(ctx, req.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Error("request still present after delete")
	}
	if err := env.requests.Delete(ctx, req.PrepID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: have %v, want ErrNotFound", err)
	}
}

package request

import (
	"testing"

	"github.com/example/reproc/internal/models"
)

func TestCanApprove(t *testing.T) {
	if result := CanApprove("ReReco-X-00001", nil); result.Allowed {
		t.Error("CanApprove() with no runs should not be allowed")
	}
	if result := CanApprove("ReReco-X-00001", []int{100, 101}); !result.Allowed {
		t.Errorf("CanApprove() with runs should be allowed, got reason %q", result.Reason)
	}
}

func TestCanUpdate(t *testing.T) {
	for _, status := range []Status{StatusNew, StatusApproved, StatusSubmitted, StatusDone} {
		if result := CanUpdate(status); !result.Allowed {
			t.Errorf("CanUpdate(%q) should be allowed, got reason %q", status, result.Reason)
		}
	}
	if result := CanUpdate(StatusSubmitting); result.Allowed {
		t.Error("CanUpdate(submitting) should not be allowed")
	}
}

func TestCanDelete(t *testing.T) {
	if result := CanDelete("ReReco-X-00001", StatusNew); !result.Allowed {
		t.Errorf("CanDelete(new) should be allowed, got reason %q", result.Reason)
	}
	for _, status := range []Status{StatusApproved, StatusSubmitting, StatusSubmitted, StatusDone} {
		if result := CanDelete("ReReco-X-00001", status); result.Allowed {
			t.Errorf("CanDelete(%q) should not be allowed", status)
		}
	}
}

func TestCompletionOf(t *testing.T) {
	tests := []struct {
		name     string
		workflow models.Workflow
		wantTime int64
		wantOK   bool
	}{
		{
			name: "valid datasets with completed entry",
			workflow: models.Workflow{
				Name: "reproc_workflow_230101_0001",
				OutputDatasets: []models.OutputDataset{
					{Name: "/DatasetX/Era-v1/AOD", Type: "VALID", Events: 100},
				},
				StatusHistory: []models.StatusEntry{
					{Status: "running-open", Time: 100},
					{Status: "completed", Time: 200},
				},
			},
			wantTime: 200,
			wantOK:   true,
		},
		{
			name: "invalid dataset blocks completion",
			workflow: models.Workflow{
				OutputDatasets: []models.OutputDataset{
					{Name: "/DatasetX/Era-v1/AOD", Type: "INVALID"},
				},
				StatusHistory: []models.StatusEntry{{Status: "completed", Time: 200}},
			},
			wantOK: false,
		},
		{
			name: "no completed entry blocks completion",
			workflow: models.Workflow{
				Name: "reproc_workflow_230101_0001",
				OutputDatasets: []models.OutputDataset{
					{Name: "/DatasetX/Era-v1/AOD", Type: "VALID"},
				},
				StatusHistory: []models.StatusEntry{{Status: "running-open", Time: 100}},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, result := CompletionOf("ReReco-X-00001", tt.workflow)
			if result.Allowed != tt.wantOK {
				t.Fatalf("CompletionOf() allowed = %v, want %v (reason %q)", result.Allowed, tt.wantOK, result.Reason)
			}
			if tt.wantOK && at != tt.wantTime {
				t.Errorf("CompletionOf() time = %d, want %d", at, tt.wantTime)
			}
		})
	}
}

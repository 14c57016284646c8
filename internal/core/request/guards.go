package request

import (
	"fmt"
	"strings"

	"github.com/example/reproc/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

var allowed = GuardResult{Allowed: true}

// CanApprove evaluates whether a new request may advance to approved.
// Rule: the run list must be resolved first.
func CanApprove(prepid string, runs []int) GuardResult {
	if len(runs) == 0 {
		return GuardResult{Reason: fmt.Sprintf("no runs are specified in %s", prepid)}
	}
	return allowed
}

// CanUpdate evaluates whether a request may be edited in its current status.
// Rule: a request being submitted is owned by the submitter.
func CanUpdate(status Status) GuardResult {
	if status == StatusSubmitting {
		return GuardResult{Reason: "request cannot be updated while it is being submitted"}
	}
	return allowed
}

// CanDelete evaluates whether a request may be deleted.
// Rule: only requests that never advanced past new can go.
func CanDelete(prepid string, status Status) GuardResult {
	if status != StatusNew {
		return GuardResult{Reason: fmt.Sprintf("request %s must be in status new before it is deleted, not %s", prepid, status)}
	}
	return allowed
}

// CompletionOf evaluates whether the given workflow allows its request to
// move to done, and returns the completion timestamp when it does. Every
// output dataset must be valid and the workflow's status history must
// contain a completed entry.
func CompletionOf(prepid string, w models.Workflow) (int64, GuardResult) {
	for _, dataset := range w.OutputDatasets {
		if !strings.EqualFold(dataset.Type, "valid") {
			return 0, GuardResult{Reason: fmt.Sprintf("cannot move %s to done because %s is %s", prepid, dataset.Name, dataset.Type)}
		}
	}
	for _, entry := range w.StatusHistory {
		if strings.EqualFold(entry.Status, "completed") {
			return entry.Time, allowed
		}
	}
	return 0, GuardResult{Reason: fmt.Sprintf("cannot move %s to done because %s is not yet completed", prepid, w.Name)}
}

// Package ticket contains the pure business logic for ticket
// operations: identifier generation and the guards around expansion and
// deletion. No I/O, only pure functions.
package ticket

import (
	"fmt"

	"github.com/example/reproc/internal/models"
)

// Status values of a ticket. A ticket becomes done exactly once, when
// its chained requests are created.
const (
	StatusNew  = "new"
	StatusDone = "done"
)

// IDPrefix builds the identifier prefix shared by all tickets created
// for the same first-step subcampaign and processing string.
func IDPrefix(subcampaign, processingString string) string {
	return fmt.Sprintf("%s-%s", subcampaign, processingString)
}

// GenerateID forms a ticket identifier from its prefix and serial
// number, zero-padded to five digits.
func GenerateID(prefix string, serial int) string {
	return fmt.Sprintf("%s-%05d", prefix, serial)
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

var allowed = GuardResult{Allowed: true}

// CanDelete evaluates whether a ticket may be deleted.
// Rule: tickets that already created requests are part of the audit
// record and cannot go.
func CanDelete(prepid string, createdChains int) GuardResult {
	if createdChains > 0 {
		return GuardResult{Reason: fmt.Sprintf("ticket %s has %d created chained requests and cannot be deleted", prepid, createdChains)}
	}
	return allowed
}

// CanCreateRequests evaluates whether a ticket may expand into chained
// requests. Rule: expansion happens exactly once, while the ticket is new.
func CanCreateRequests(prepid, status string, createdChains int) GuardResult {
	if status != StatusNew {
		return GuardResult{Reason: fmt.Sprintf("ticket %s is not new, it already has %d chained requests created", prepid, createdChains)}
	}
	return allowed
}

// ValidateSteps checks the structural rules of a ticket's steps: at
// least one step, every step naming a subcampaign and a processing
// string, and a join type on every step after the first.
func ValidateSteps(steps []models.TicketStep) GuardResult {
	if len(steps) == 0 {
		return GuardResult{Reason: "ticket has no steps"}
	}
	for i, step := range steps {
		if step.Subcampaign == "" {
			return GuardResult{Reason: fmt.Sprintf("step %d has no subcampaign", i)}
		}
		if step.ProcessingString == "" {
			return GuardResult{Reason: fmt.Sprintf("step %d has no processing string", i)}
		}
		if i > 0 && step.JoinType == "" {
			return GuardResult{Reason: fmt.Sprintf("step %d has no join type", i)}
		}
	}
	return allowed
}

// BlacklistedDataset returns the first input dataset whose primary
// dataset is blacklisted, if any.
func BlacklistedDataset(inputDatasets []string, blacklist []string) (string, bool) {
	blacklisted := make(map[string]bool, len(blacklist))
	for _, dataset := range blacklist {
		blacklisted[dataset] = true
	}
	for _, inputDataset := range inputDatasets {
		if blacklisted[models.PrimaryDataset(inputDataset)] {
			return inputDataset, true
		}
	}
	return "", false
}

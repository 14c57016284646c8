package request

import (
	"sort"
	"strconv"
	"strings"

	"github.com/example/reproc/internal/models"
)

// tierPriority orders output datasets for synchronization. The last
// relevant dataset drives the completed-events count, so DQM-like tiers
// that carry no events sort first and real data tiers sort last.
// Unknown tiers sort before all known ones.
var tierPriority = []string{
	"DQM",
	"DQMIO",
	"USER",
	"ALCARECO",
	"RAW",
	"RECO",
	"AOD",
	"MINIAOD",
	"NANOAOD",
}

func tierLevel(dataset string) int {
	parts := strings.Split(dataset, "/")
	tier := parts[len(parts)-1]
	for level, t := range tierPriority {
		if t == strings.ToUpper(tier) {
			return level
		}
	}
	return -1
}

// DatasetEvents is the observed state of one dataset inside an event
// history entry of a remote workflow.
type DatasetEvents struct {
	Type   string
	Events int64
}

// EventHistoryEntry is one snapshot of the datasets a remote workflow
// has produced, newest entries last.
type EventHistoryEntry struct {
	Datasets map[string]DatasetEvents
}

// RemoteWorkflow is the full detail of one workflow as reported by the
// statistics service. Priority and TotalEvents are nil when the remote
// document does not carry them.
type RemoteWorkflow struct {
	Name           string
	Type           string
	Priority       *int
	TotalEvents    *int64
	OutputDatasets []string
	EventHistory   []EventHistoryEntry
	StatusHistory  []models.StatusEntry
}

// SyncResult is the outcome of synchronizing a request against the
// remote workflows: the rewritten workflow list, the relevant output
// datasets and the counters extracted from the most recent workflow.
type SyncResult struct {
	Workflows      []models.Workflow
	OutputDatasets []string

	CompletedEvents    int64
	HasCompletedEvents bool
	Priority           int
	HasPriority        bool
	TotalEvents        int64
	HasTotalEvents     bool
}

// Synchronize computes the local view of the given remote workflows for
// a request with the given processing sequences. Resubmissions are
// discarded. The relevant output datasets are the sequences' declared
// data tiers intersected with what the workflows actually produced,
// keeping only the latest version per dataset and ordering by data-tier
// priority. Workflows are sorted by the numeric suffix of their name.
func Synchronize(sequences []models.Sequence, remote []RemoteWorkflow) SyncResult {
	kept := make([]RemoteWorkflow, 0, len(remote))
	for _, w := range remote {
		if strings.EqualFold(w.Type, "resubmission") {
			continue
		}
		kept = append(kept, w)
	}

	result := SyncResult{
		OutputDatasets: selectOutputDatasets(sequences, kept),
	}
	result.Workflows = buildWorkflows(kept, result.OutputDatasets)

	// Newest-first: completed events come from the first workflow that
	// produced the last relevant output dataset.
	if len(result.OutputDatasets) > 0 {
		last := result.OutputDatasets[len(result.OutputDatasets)-1]
	scan:
		for i := len(result.Workflows) - 1; i >= 0; i-- {
			for _, dataset := range result.Workflows[i].OutputDatasets {
				if dataset.Name == last {
					result.CompletedEvents = dataset.Events
					result.HasCompletedEvents = true
					break scan
				}
			}
		}
	}

	if len(result.Workflows) > 0 {
		newest := result.Workflows[len(result.Workflows)-1].Name
		for _, w := range kept {
			if w.Name != newest {
				continue
			}
			if w.Priority != nil {
				result.Priority = *w.Priority
				result.HasPriority = true
			}
			if w.TotalEvents != nil {
				result.TotalEvents = max(0, *w.TotalEvents)
				result.HasTotalEvents = true
			}
			break
		}
	}

	return result
}

// selectOutputDatasets intersects the sequences' declared data tiers
// with the datasets the workflows produced, collapsing each
// (tier, versionless name) group to its lexicographically-last version.
func selectOutputDatasets(sequences []models.Sequence, workflows []RemoteWorkflow) []string {
	tiers := map[string]bool{}
	for _, sequence := range sequences {
		for _, tier := range sequence.Datatier {
			tiers[tier] = true
		}
	}

	groups := map[string][]string{}
	for _, workflow := range workflows {
		for _, dataset := range workflow.OutputDatasets {
			parts := strings.Split(dataset, "/")
			tier := parts[len(parts)-1]
			if !tiers[tier] {
				continue
			}
			withoutTier := strings.Join(parts[:len(parts)-1], "/")
			versionParts := strings.Split(withoutTier, "-")
			versionless := strings.Join(versionParts[:len(versionParts)-1], "-")
			key := tier + "/" + versionless
			groups[key] = append(groups[key], dataset)
		}
	}

	var datasets []string
	for _, group := range groups {
		sort.Strings(group)
		datasets = append(datasets, group[len(group)-1])
	}

	sort.Slice(datasets, func(i, j int) bool {
		li, lj := tierLevel(datasets[i]), tierLevel(datasets[j])
		if li != lj {
			return li < lj
		}
		return datasets[i] < datasets[j]
	})
	return datasets
}

// buildWorkflows extracts each workflow's output datasets restricted to
// the relevant set, taking the most recent event-history entry per
// dataset, and copies the status history.
func buildWorkflows(remote []RemoteWorkflow, outputDatasets []string) []models.Workflow {
	workflows := make([]models.Workflow, 0, len(remote))
	for _, w := range remote {
		workflow := models.Workflow{
			Name:          w.Name,
			Type:          w.Type,
			StatusHistory: append([]models.StatusEntry(nil), w.StatusHistory...),
		}
		for _, dataset := range outputDatasets {
			for i := len(w.EventHistory) - 1; i >= 0; i-- {
				if info, ok := w.EventHistory[i].Datasets[dataset]; ok {
					workflow.OutputDatasets = append(workflow.OutputDatasets, models.OutputDataset{
						Name:   dataset,
						Type:   info.Type,
						Events: info.Events,
					})
					break
				}
			}
		}
		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		si, sj := nameSuffix(workflows[i].Name), nameSuffix(workflows[j].Name)
		if si != sj {
			return si < sj
		}
		return workflows[i].Name < workflows[j].Name
	})
	return workflows
}

// nameSuffix parses the trailing digit run of a workflow name, which
// encodes the submission sequence. Returns -1 when there is none.
func nameSuffix(name string) int {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return -1
	}
	suffix, err := strconv.Atoi(name[i:])
	if err != nil {
		return -1
	}
	return suffix
}

// ActiveWorkflows filters out workflows whose status history contains a
// terminal failure: aborted, rejected or failed. Active workflows are
// the ones that must be rejected remotely during a retreat.
func ActiveWorkflows(workflows []models.Workflow) []models.Workflow {
	var active []models.Workflow
	for _, workflow := range workflows {
		inactive := false
		for _, entry := range workflow.StatusHistory {
			switch strings.ToLower(entry.Status) {
			case "aborted", "rejected", "failed":
				inactive = true
			}
		}
		if !inactive {
			active = append(active, workflow)
		}
	}
	return active
}

// WorkflowNames returns the names of the given workflows in order.
func WorkflowNames(workflows []models.Workflow) []string {
	names := make([]string, len(workflows))
	for i, workflow := range workflows {
		names[i] = workflow.Name
	}
	return names
}

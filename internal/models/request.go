package models

// Sequence is one processing-step configuration of a request. Sequences
// come from the subcampaign template and may be edited while the request
// is still new.
type Sequence struct {
	Conditions         string   `json:"conditions"`
	Datatier           []string `json:"datatier"`
	EventContent       []string `json:"eventcontent"`
	NThreads           int      `json:"nThreads"`
	Scenario           string   `json:"scenario"`
	ConfigID           string   `json:"config_id"`
	HarvestingConfigID string   `json:"harvesting_config_id"`
}

// OutputDataset is one dataset produced by a remote workflow, with the
// validity type and event count observed at the last synchronization.
type OutputDataset struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Events int64  `json:"events"`
}

// StatusEntry is one remote status transition of a workflow.
type StatusEntry struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

// Workflow is the locally recorded snapshot of one remote workflow.
// The workflows list of a request is rewritten on every synchronization;
// the request history keeps the audit trail of past synchronizations.
type Workflow struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	OutputDatasets []OutputDataset `json:"output_datasets"`
	StatusHistory  []StatusEntry   `json:"status_history"`
}

// Request is a unit of data-processing work tracked through the states
// new, approved, submitting, submitted and done.
type Request struct {
	Base

	Status           string     `json:"status"`
	Subcampaign      string     `json:"subcampaign"`
	InputDataset     string     `json:"input_dataset"`
	ProcessingString string     `json:"processing_string"`
	Sequences        []Sequence `json:"sequences"`
	Runs             []int      `json:"runs"`
	Workflows        []Workflow `json:"workflows"`
	OutputDatasets   []string   `json:"output_datasets"`
	TotalEvents      int64      `json:"total_events"`
	CompletedEvents  int64      `json:"completed_events"`
	Priority         int        `json:"priority"`
	Memory           int        `json:"memory"`
	Energy           float64    `json:"energy"`
	Release          string     `json:"release"`
	TimePerEvent     float64    `json:"time_per_event"`
	SizePerEvent     float64    `json:"size_per_event"`
}

// Dataset returns the dataset part of the request's input dataset name.
func (r *Request) Dataset() string {
	dataset, _, _ := ParseInputDataset(r.InputDataset)
	return dataset
}

// Era returns the acquisition era encoded in the input dataset name.
func (r *Request) Era() string {
	_, era, _ := ParseInputDataset(r.InputDataset)
	return era
}

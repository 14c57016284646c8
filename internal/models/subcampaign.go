package models

// Subcampaign is a read-only template supplying defaults for requests:
// release, sequences, memory and energy, plus the path of the
// run-certification document used during run resolution.
type Subcampaign struct {
	Base

	Release      string     `json:"release"`
	ScramArch    string     `json:"scram_arch"`
	Sequences    []Sequence `json:"sequences"`
	Memory       int        `json:"memory"`
	Energy       float64    `json:"energy"`
	RunsJSONPath string     `json:"runs_json_path"`
}

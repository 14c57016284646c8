package models

// TicketStep describes one step of the chained requests a ticket expands
// into. Step 0 consumes the ticket's input datasets; later steps consume
// the output of the previous step, linked by join type.
type TicketStep struct {
	Subcampaign      string  `json:"subcampaign"`
	ProcessingString string  `json:"processing_string"`
	TimePerEvent     float64 `json:"time_per_event"`
	SizePerEvent     float64 `json:"size_per_event"`
	Priority         int     `json:"priority"`
	JoinType         string  `json:"join_type"`
}

// CreatedChain records one chained request created from a ticket together
// with the identifiers of its member requests.
type CreatedChain struct {
	ChainedRequest string   `json:"chained_request"`
	Requests       []string `json:"requests"`
}

// Ticket is a batch specification that expands into one chained request
// per input dataset. Status moves from new to done exactly once, when the
// created requests are recorded.
type Ticket struct {
	Base

	Steps           []TicketStep   `json:"steps"`
	InputDatasets   []string       `json:"input_datasets"`
	CreatedRequests []CreatedChain `json:"created_requests"`
	Status          string         `json:"status"`
	Notes           string         `json:"notes"`
}

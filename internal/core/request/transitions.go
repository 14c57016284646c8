// Package request contains the pure business logic for request
// operations: the status state machine, identifier generation and the
// synchronization of locally recorded workflows with the remote
// workflow management system. No I/O, only pure functions.
package request

// Status represents the lifecycle state of a request.
type Status string

const (
	StatusNew        Status = "new"
	StatusApproved   Status = "approved"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusDone       Status = "done"
)

// InitialStatus returns the status of a freshly created request.
func InitialStatus() Status {
	return StatusNew
}

// Next returns the status an advance operation moves to. ok is false
// when advancing from s is forbidden: a submitting request must wait for
// the external submission to finish and a done request is final.
func Next(s Status) (Status, bool) {
	switch s {
	case StatusNew:
		return StatusApproved, true
	case StatusApproved:
		return StatusSubmitting, true
	case StatusSubmitted:
		return StatusDone, true
	default:
		return "", false
	}
}

// Previous returns the status a retreat operation moves to. ok is false
// when there is no backward transition from s.
func Previous(s Status) (Status, bool) {
	switch s {
	case StatusApproved:
		return StatusNew, true
	case StatusSubmitting, StatusSubmitted:
		return StatusApproved, true
	default:
		return "", false
	}
}

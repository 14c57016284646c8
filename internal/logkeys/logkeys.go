// Package logkeys defines static logging keys for consistent structured
// logging output. Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	PrepID       = "prepid"
	Entity       = "entity"
	Status       = "status"
	WorkflowName = "workflow_name"
	Dataset      = "dataset"
	TraceID      = "trace_id"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)

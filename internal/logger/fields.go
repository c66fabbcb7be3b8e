package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, carried by the context logger.
const (
	FieldRequestID  = "request_id"
	FieldTaskID     = "task_id"
	FieldRunID      = "run_id"      // one execution of a task
	FieldNetworkKey = "network_key" // network app key scoping raw rows
	FieldDay        = "day"         // report day, YYYY-MM-DD
	FieldComponent  = "component"
)

// Metric fields, attached per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldDropped    = "dropped" // report groups left unresolved
)

package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID).
	FieldRequestID = "request_id"

	// FieldRunID identifies one pipeline run attempt.
	FieldRunID = "run_id"

	// FieldSource is the telemetry source identifier.
	FieldSource = "source"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldDeviceKey is the normalized device hardware address.
	FieldDeviceKey = "device_key"
)

// Metric fields used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field.
	FieldCount = "count"

	// FieldStatus is the operation status.
	FieldStatus = "status"
)

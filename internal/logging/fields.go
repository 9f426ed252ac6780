package logging

// Standardized attribute keys shared across components.
const (
	// FieldComponent identifies the emitting subsystem (cachestore, lockfile, ...).
	FieldComponent = "component"

	// FieldEventType tags machine-scannable event names (lock_reclaimed, ...).
	FieldEventType = "event_type"

	// FieldErrorHint suggests the operator's next step after a warning or error.
	FieldErrorHint = "error_hint"

	// FieldImpact is the standardized key for the user-facing consequence of a warning.
	FieldImpact = "impact"

	// FieldNamespace and FieldKey locate a cache entry.
	FieldNamespace = "namespace"
	FieldKey       = "key"
)

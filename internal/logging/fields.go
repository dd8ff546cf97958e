package logging

// Standardized attribute keys. Components agree on these so log output can be
// filtered consistently across the pipeline.
const (
	FieldComponent  = "component"
	FieldEventType  = "event_type"
	FieldErrorHint  = "error_hint"
	FieldImpact     = "impact"
	FieldJobID      = "job_id"
	FieldSource     = "source"
	FieldLot        = "lot"
	FieldIdentifier = "identifier"
	FieldInternalID = "internal_id"
	FieldPhase      = "phase"
	FieldAttempt    = "attempt"
	FieldCacheKey   = "cache_key"
	FieldDuration   = "duration"
)

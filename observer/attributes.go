package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for dispatch spans, metrics and log records that have no
// semantic-convention counterpart.
var (
	AttrRequestID = attribute.Key("reqwest.request_id")
	AttrOutcome   = attribute.Key("reqwest.outcome")
	AttrErrorName = attribute.Key("reqwest.error.name")
	AttrBodyBytes = attribute.Key("reqwest.response.body_bytes")
)

// Outcome values of AttrOutcome.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

package audit

import (
	"context"
	"time"
)

// Severity levels for audit events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events that anchor public proofs or change a
	// citizen's standing. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or suspicious actions: duplicate
	// endorsements, sanctioned citizens, illegal state transitions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity; can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Operation names what happened. Values are stable strings.
type Operation string

const (
	// Privilege events
	OpPrivilegesResolved Operation = "privileges_resolved"
	OpDegradedPrivilege  Operation = "degraded_privilege_resolved"

	// Standing events
	OpImpactApplied    Operation = "impact_applied"
	OpConfigurationGap Operation = "configuration_gap"

	// Pool events
	OpSignatureIngested   Operation = "signature_ingested"
	OpSignatureRejected   Operation = "signature_rejected"
	OpEndorsementAccepted Operation = "endorsement_accepted"
	OpEndorsementDenied   Operation = "endorsement_denied"
	OpPoolSealed          Operation = "pool_sealed"
	OpSealRejected        Operation = "seal_rejected"
	OpSealScheduled       Operation = "seal_scheduled"
	OpSealAnnounceFailed  Operation = "seal_announce_failed"
)

var operationCategories = map[Operation]EventCategory{
	OpImpactApplied: CategoryCompliance,
	OpPoolSealed:    CategoryCompliance,

	OpDegradedPrivilege:  CategorySecurity,
	OpSignatureRejected:  CategorySecurity,
	OpEndorsementDenied:  CategorySecurity,
	OpSealRejected:       CategorySecurity,
	OpConfigurationGap:   CategorySecurity,
	OpSealAnnounceFailed: CategorySecurity,

	OpPrivilegesResolved:  CategoryOperations,
	OpSignatureIngested:   CategoryOperations,
	OpEndorsementAccepted: CategoryOperations,
	OpSealScheduled:       CategoryOperations,
}

// Category returns the EventCategory for this operation.
// Unknown operations default to CategoryOperations.
func (o Operation) Category() EventCategory {
	if cat, ok := operationCategories[o]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is the record handed to the structured-log sink:
// {severity, operation, correlationId, metadata}. Message is human-readable
// text produced by a Formatter and never drives control flow.
type Event struct {
	Timestamp     time.Time
	Severity      Severity
	Operation     Operation
	CorrelationID string
	Subject       string
	Message       string
	Metadata      map[string]any
}

// Sink accepts audit events. Implementations must never block the caller
// and never surface failures.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Store persists audit events. Failures are returned; the publisher decides
// how to absorb them.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// NopSink discards events. Used where auditing is optional.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

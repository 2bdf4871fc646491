package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers state changes that affect money or trust:
	// credit debits, verification outcomes, settings changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied or suspicious attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as reconciliation sweeps.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and the outbox relay can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is who performed the action; empty for system jobs.
	ActorID string
	// Subject is the primary entity the action touched (request, company, professional).
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID is the HTTP correlation ID when one exists.
	RequestID string
}

type AuditEvent string

const (
	// Introduction lifecycle
	EventIntroductionSent     AuditEvent = "introduction_sent"
	EventIntroductionDenied   AuditEvent = "introduction_denied"
	EventIntroductionViewed   AuditEvent = "introduction_viewed"
	EventIntroductionAccepted AuditEvent = "introduction_accepted"
	EventIntroductionDeclined AuditEvent = "introduction_declined"
	EventIntroductionsExpired AuditEvent = "introductions_expired"

	// Trust verification
	EventLinkedInVerified     AuditEvent = "linkedin_verified"
	EventLinkedInManualReview AuditEvent = "linkedin_manual_review"
	EventCompanyVerified      AuditEvent = "company_verified"
	EventCompanyUnverified    AuditEvent = "company_unverified"
	EventCompanyManualReview  AuditEvent = "company_manual_review"

	// Settings
	EventSettingsUpdated AuditEvent = "settings_updated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIntroductionSent:     CategoryCompliance,
	EventIntroductionAccepted: CategoryCompliance,
	EventIntroductionDeclined: CategoryCompliance,
	EventLinkedInVerified:     CategoryCompliance,
	EventCompanyVerified:      CategoryCompliance,
	EventCompanyUnverified:    CategoryCompliance,
	EventSettingsUpdated:      CategoryCompliance,

	EventIntroductionDenied:   CategorySecurity,
	EventLinkedInManualReview: CategorySecurity,
	EventCompanyManualReview:  CategorySecurity,

	EventIntroductionViewed:   CategoryOperations,
	EventIntroductionsExpired: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Postgres-backed stores join the caller's
// transaction when one is present in the context.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

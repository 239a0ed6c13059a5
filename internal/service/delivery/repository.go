package delivery

import (
	"context"
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
)

// EventRepository is the slice of event storage the delivery service needs.
type EventRepository interface {
	// Get returns the event or ErrEventNotFound.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// UpdateParticipant persists one participant's delivery state inside
	// the event document, matched by certification id.
	UpdateParticipant(ctx context.Context, eventID string, p domain.Participant) error

	// ReplaceParticipants swaps the full embedded participant list.
	ReplaceParticipants(ctx context.Context, eventID string, ps []domain.Participant) error
}

// EmailLogRepository is the append-only audit log store.
type EmailLogRepository interface {
	// Append stores one immutable entry and returns its id.
	Append(ctx context.Context, entry *domain.EmailLog) (string, error)

	// ListByEvent returns an event's entries, newest first.
	ListByEvent(ctx context.Context, eventID string) ([]domain.EmailLog, error)

	// PurgeOlderThan deletes entries created before the cutoff and
	// returns how many were removed. Retention cleanup only.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Transport sends mail through one event's SMTP configuration.
// *smtp.Client satisfies this.
type Transport interface {
	TestConnection(ctx context.Context) *emailerror.Error
	SendCertificate(ctx context.Context, to string, vars smtp.TemplateVars, certificate []byte, tpl domain.EmailTemplate) smtp.Result
}

// TransportFactory builds a Transport for an event's config. Injected so
// tests can substitute a fake without a live SMTP server.
type TransportFactory func(cfg domain.EmailConfig) Transport

// RenderFunc is the external certificate rendering collaborator. Failures
// are converted into attachment-class errors by the orchestrator.
type RenderFunc func(ctx context.Context, event *domain.Event, p domain.Participant) ([]byte, error)

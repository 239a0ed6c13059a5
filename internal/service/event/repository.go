package event

import (
	"context"
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

// Repository defines the data access contract for events.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single event. Returns ErrNotFound if it doesn't exist
	// or is soft-deleted.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// List returns events matching the given filter, ordered by created_at
	// DESC, plus the total match count for pagination.
	List(ctx context.Context, filter ListFilter) ([]domain.Event, int, error)

	// Create inserts a new event and returns its ID.
	Create(ctx context.Context, e *domain.Event) (string, error)

	// Update modifies an event. Only non-nil fields in the update are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// SoftDelete marks an event deleted without removing its rows, so the
	// email audit trail stays intact.
	SoftDelete(ctx context.Context, id string) error

	// SetStatus transitions an event between active and archived.
	SetStatus(ctx context.Context, id string, status domain.EventStatus) error

	// ReplaceParticipants swaps the full embedded participant list.
	ReplaceParticipants(ctx context.Context, id string, ps []domain.Participant) error
}

// ListFilter controls pagination and filtering for event lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for an event update.
// Nil fields are not applied.
type UpdateFields struct {
	Title         *string
	Description   *string
	EventDate     *time.Time
	TemplatePath  *string
	NameConfig    *domain.TextConfig
	IDConfig      *domain.TextConfig
	EmailConfig   *domain.EmailConfig
	EmailTemplate *domain.EmailTemplate
	EmailSettings *domain.EmailSettings
}

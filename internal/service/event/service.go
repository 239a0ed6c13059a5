package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/logger"
)

// Defaults seed the email configuration of newly created events from the
// platform config. Everything is still editable per event afterwards.
type Defaults struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

// Service implements event business logic. All public methods are safe for
// concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	defaults Defaults
}

// NewService creates an event service backed by the given repository.
func NewService(repo Repository, defaults Defaults) *Service {
	return &Service{repo: repo, defaults: defaults}
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, id string) (*domain.Event, error) {
	return s.repo.Get(ctx, id)
}

// List returns events matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Event, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new event.
type CreateInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventDate   time.Time `json:"event_date"`
}

// defaultEmailTemplate is the starting template every new event gets.
var defaultEmailTemplate = domain.EmailTemplate{
	Subject: "Your Certificate - {eventTitle}",
	HTML: "<p>Dear {participantName},</p>" +
		"<p>Thank you for participating in {eventTitle} on {eventDate}. " +
		"Your certificate ({certificateId}) is attached.</p>",
	Text: "Dear {participantName},\n\n" +
		"Thank you for participating in {eventTitle} on {eventDate}. " +
		"Your certificate ({certificateId}) is attached.\n",
}

// Create validates and persists a new active event seeded with the platform
// SMTP defaults and the stock email template.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Event, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.EventDate.IsZero() {
		return nil, fmt.Errorf("event date is required")
	}

	e := &domain.Event{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		EventDate:   input.EventDate,
		Status:      domain.EventActive,
		EmailConfig: domain.EmailConfig{
			Host:        s.defaults.SMTPHost,
			Port:        s.defaults.SMTPPort,
			Username:    s.defaults.Username,
			Password:    s.defaults.Password,
			FromName:    s.defaults.FromName,
			FromAddress: s.defaults.FromAddress,
		},
		EmailTemplate: defaultEmailTemplate,
		EmailSettings: domain.EmailSettings{Enabled: true},
	}

	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	e.ID = id
	return e, nil
}

// Update modifies mutable event fields. Archived events are read-only apart
// from being unarchived.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == domain.EventArchived {
		return ErrArchived
	}
	return s.repo.Update(ctx, id, u)
}

// Delete soft-deletes an event. The rows stay so the email audit trail does.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

// Archive makes an event read-only.
func (s *Service) Archive(ctx context.Context, id string) error {
	return s.repo.SetStatus(ctx, id, domain.EventArchived)
}

// Unarchive returns an archived event to active.
func (s *Service) Unarchive(ctx context.Context, id string) error {
	return s.repo.SetStatus(ctx, id, domain.EventActive)
}

// Duplicate creates a fresh copy of an event: same layout, template and
// email configuration, same participants but with all delivery state reset.
func (s *Service) Duplicate(ctx context.Context, id string) (*domain.Event, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := *src
	dup.ID = uuid.New().String()
	dup.Title = src.Title + " (copy)"
	dup.Status = domain.EventActive
	dup.Deleted = false
	dup.DeletedAt = nil
	dup.Participants = make([]domain.Participant, len(src.Participants))
	for i, p := range src.Participants {
		dup.Participants[i] = domain.Participant{
			Name:            p.Name,
			CertificationID: p.CertificationID,
			Email:           p.Email,
			EmailStatus:     domain.EmailNotSent,
		}
	}

	newID, err := s.repo.Create(ctx, &dup)
	if err != nil {
		return nil, err
	}
	dup.ID = newID
	logger.Info("event duplicated", "source_id", id, "event_id", newID)
	return &dup, nil
}

// ImportRow is one parsed participant from an uploaded sheet.
type ImportRow struct {
	Name            string `json:"name"`
	CertificationID string `json:"certification_id"`
	Email           string `json:"email"`
}

// ImportParticipants replaces an event's participant list with the imported
// rows. Certification ids must be unique; rows without one get a generated
// id. Existing delivery state is kept for participants whose certification
// id survives the import.
func (s *Service) ImportParticipants(ctx context.Context, id string, rows []ImportRow) (*domain.Event, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == domain.EventArchived {
		return nil, ErrArchived
	}
	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}

	existing := make(map[string]domain.Participant, len(e.Participants))
	for _, p := range e.Participants {
		existing[p.CertificationID] = p
	}

	seen := make(map[string]bool, len(rows))
	participants := make([]domain.Participant, 0, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, fmt.Errorf("row %d: name is required", i+1)
		}
		certID := strings.TrimSpace(row.CertificationID)
		if certID == "" {
			certID = generateCertID(e, i)
		}
		if seen[certID] {
			return nil, fmt.Errorf("row %d: %w: %s", i+1, ErrDuplicateCertID, certID)
		}
		seen[certID] = true

		p := domain.Participant{
			Name:            name,
			CertificationID: certID,
			Email:           strings.TrimSpace(row.Email),
			EmailStatus:     domain.EmailNotSent,
		}
		if prev, ok := existing[certID]; ok && prev.Email == p.Email {
			p.EmailStatus = prev.EmailStatus
			p.LastEmailSent = prev.LastEmailSent
			p.EmailError = prev.EmailError
			p.EmailRetryCount = prev.EmailRetryCount
		}
		participants = append(participants, p)
	}

	if err := s.repo.ReplaceParticipants(ctx, id, participants); err != nil {
		return nil, err
	}
	e.Participants = participants
	logger.Info("participants imported", "event_id", id, "count", fmt.Sprint(len(participants)))
	return e, nil
}

// SetTemplate records the stored path of the uploaded certificate template.
func (s *Service) SetTemplate(ctx context.Context, id, path string) error {
	return s.Update(ctx, id, UpdateFields{TemplatePath: &path})
}

// generateCertID builds a deterministic-looking certification id for rows
// imported without one: CERT-<year>-<seq>.
func generateCertID(e *domain.Event, idx int) string {
	return fmt.Sprintf("CERT-%d-%04d", e.EventDate.Year(), idx+1)
}

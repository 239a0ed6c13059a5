package domain

import "time"

// EventStatus tracks the lifecycle of an event.
type EventStatus string

const (
	EventActive   EventStatus = "active"
	EventArchived EventStatus = "archived"
)

// Event is the aggregate root. It owns the certificate template, the two
// text-placement configs, the participant list, and the email configuration.
// Participants are embedded in the event document, not a separate collection.
type Event struct {
	ID            string        `json:"id" db:"id"`
	Title         string        `json:"title" db:"title"`
	Description   string        `json:"description,omitempty" db:"description"`
	EventDate     time.Time     `json:"event_date" db:"event_date"`
	Status        EventStatus   `json:"status" db:"status"`
	TemplatePath  string        `json:"template_path,omitempty" db:"template_path"`
	NameConfig    TextConfig    `json:"name_config" db:"name_config"`
	IDConfig      TextConfig    `json:"id_config" db:"id_config"`
	Participants  []Participant `json:"participants" db:"participants"`
	EmailConfig   EmailConfig   `json:"email_config" db:"email_config"`
	EmailTemplate EmailTemplate `json:"email_template" db:"email_template"`
	EmailSettings EmailSettings `json:"email_settings" db:"email_settings"`
	Deleted       bool          `json:"deleted,omitempty" db:"deleted"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Ready reports whether the event has everything the renderer needs:
// a template image and both text-placement configs.
func (e *Event) Ready() bool {
	return e.TemplatePath != "" && e.NameConfig.FontSize > 0 && e.IDConfig.FontSize > 0
}

// Participant returns the participant with the given certification id, or nil.
func (e *Event) Participant(certificationID string) *Participant {
	for i := range e.Participants {
		if e.Participants[i].CertificationID == certificationID {
			return &e.Participants[i]
		}
	}
	return nil
}

// TextConfig positions one text field (name or certification id) on the
// certificate template.
type TextConfig struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	FontSize int    `json:"font_size"`
	Color    string `json:"color"`               // hex, e.g. "#1a1a1a"
	Align    string `json:"align"`               // "left", "center", "right"
	MaxWidth int    `json:"max_width,omitempty"` // 0 = unbounded
}

// EmailStatus tracks per-participant delivery state. Transitions happen only
// through the delivery service.
type EmailStatus string

const (
	EmailNotSent EmailStatus = "not_sent"
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
	EmailBounced EmailStatus = "bounced"
)

// Participant is one certificate recipient, keyed by CertificationID
// (unique within an event). Email is optional; participants without a
// usable address are skipped by bulk sends.
type Participant struct {
	Name            string      `json:"name"`
	CertificationID string      `json:"certification_id"`
	Email           string      `json:"email,omitempty"`
	EmailStatus     EmailStatus `json:"email_status"`
	LastEmailSent   *time.Time  `json:"last_email_sent,omitempty"`
	EmailError      string      `json:"email_error,omitempty"`
	EmailRetryCount int         `json:"email_retry_count"`
}

package domain

import "time"

// EmailConfig holds the per-event SMTP settings. One config per event;
// without a valid config no mail leaves that event.
type EmailConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Secure      bool   `json:"secure"` // true = implicit TLS, false = STARTTLS when offered
	Username    string `json:"username"`
	Password    string `json:"-"`
	FromName    string `json:"from_name"`
	FromAddress string `json:"from_address"`
	Subject     string `json:"subject"`
	Enabled     bool   `json:"enabled"`
}

// EmailConfigDocument is the storage form of EmailConfig. The API form
// never serializes the SMTP password; the database document must.
type EmailConfigDocument struct {
	EmailConfig
	Password string `json:"password"`
}

// Document returns the storage form of the config.
func (c EmailConfig) Document() EmailConfigDocument {
	return EmailConfigDocument{EmailConfig: c, Password: c.Password}
}

// Config returns the API form with the password restored onto the struct.
func (d EmailConfigDocument) Config() EmailConfig {
	c := d.EmailConfig
	c.Password = d.Password
	return c
}

// EmailTemplate holds the message bodies. Placeholders ({participantName},
// {eventTitle}, {certificateId}, {eventDate}) are replaced by literal
// substitution, not a templating engine.
type EmailTemplate struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// EmailSettings gates sending behavior for an event.
type EmailSettings struct {
	Enabled      bool `json:"enabled"`
	RequireEmail bool `json:"require_email"`
	AutoSend     bool `json:"auto_send"`
}

// EmailLog is one append-only audit entry per send attempt. Entries are never
// mutated; they are queried newest-first for dashboards and purged only by
// the age-based retention job. After a crash the log is the source of truth
// for reconciling participant status.
type EmailLog struct {
	ID            string      `json:"id" db:"id"`
	EventID       string      `json:"event_id" db:"event_id"`
	ParticipantID string      `json:"participant_id" db:"participant_id"` // certification id
	EmailAddress  string      `json:"email_address" db:"email_address"`
	Status        EmailStatus `json:"status" db:"status"`
	MessageID     string      `json:"message_id,omitempty" db:"message_id"`
	SentAt        *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage  string      `json:"error_message,omitempty" db:"error_message"`
	RetryCount    int         `json:"retry_count" db:"retry_count"`
	LastRetryAt   *time.Time  `json:"last_retry_at,omitempty" db:"last_retry_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

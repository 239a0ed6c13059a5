package validation

import (
	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
)

// Context names the operation a validation run is gating.
type Context string

const (
	ContextSend     Context = "send"      // single participant send
	ContextBulkSend Context = "bulk_send" // batch send across participants
	ContextConfig   Context = "config"    // SMTP config check only
	ContextTest     Context = "test"      // template check only
)

// ForSend validates everything a single-participant send needs: event
// readiness, the participant, the SMTP config, the template, and the
// enabled flag. Callers must not reach the transport client unless IsValid.
func ForSend(event *domain.Event, participant domain.Participant) Result {
	r := ok()

	if !event.EmailSettings.Enabled {
		r.addError(emailerror.Configuration("email sending is disabled for this event"))
	}
	if !event.Ready() {
		r.addError(emailerror.Configuration("event has no certificate template or text layout configured"))
	}

	r.merge(Participant(participant))
	r.merge(SMTPConfig(event.EmailConfig))
	r.merge(EmailTemplate(event.EmailTemplate))
	return r
}

// ForBulkSend validates a batch send. Participants without a usable email
// address are a warning (they are skipped, not failed) unless nobody has
// one, which is a hard failure.
func ForBulkSend(event *domain.Event, participants []domain.Participant) Result {
	r := ok()

	if !event.EmailSettings.Enabled {
		r.addError(emailerror.Configuration("email sending is disabled for this event"))
	}
	if !event.Ready() {
		r.addError(emailerror.Configuration("event has no certificate template or text layout configured"))
	}

	r.merge(SMTPConfig(event.EmailConfig))
	r.merge(EmailTemplate(event.EmailTemplate))

	if len(participants) == 0 {
		r.addError(emailerror.Validation("no participants selected"))
		return r
	}

	usable := 0
	for _, p := range participants {
		if addr := EmailAddress(p.Email); addr.IsValid {
			usable++
		}
	}
	switch {
	case usable == 0:
		r.addError(emailerror.Validation("none of the selected participants has a usable email address"))
	case usable < len(participants):
		r.addWarning("%d of %d participants have no usable email address and will be skipped",
			len(participants)-usable, len(participants))
	}

	return r
}

// ForConfig validates only the SMTP configuration.
func ForConfig(cfg domain.EmailConfig) Result {
	return SMTPConfig(cfg)
}

// ForTemplateTest validates only the template.
func ForTemplateTest(tpl domain.EmailTemplate) Result {
	return EmailTemplate(tpl)
}

// For dispatches on the operation context. Handlers that receive the context
// as a string use this; typed callers use the specific functions directly.
func For(op Context, event *domain.Event, participants []domain.Participant) Result {
	switch op {
	case ContextSend:
		var p domain.Participant
		if len(participants) > 0 {
			p = participants[0]
		}
		return ForSend(event, p)
	case ContextBulkSend:
		return ForBulkSend(event, participants)
	case ContextConfig:
		return ForConfig(event.EmailConfig)
	case ContextTest:
		return ForTemplateTest(event.EmailTemplate)
	default:
		r := ok()
		r.addError(emailerror.Validation("unknown validation context: " + string(op)))
		return r
	}
}

// Package validation contains the pure validators for the email subsystem
// and the orchestrator that composes them per operation context.
//
// Validators never return a Go error and never panic: every outcome is a
// Result with typed errors and advisory warnings, so callers get the full
// list of problems in one pass.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
)

// Result is the aggregate outcome of one or more validators. Errors block
// the operation; warnings are surfaced but do not.
type Result struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []*emailerror.Error `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

func (r *Result) addError(e *emailerror.Error) {
	r.Errors = append(r.Errors, e)
	r.IsValid = false
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// merge folds another result into this one.
func (r *Result) merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.IsValid {
		r.IsValid = false
	}
}

func ok() Result { return Result{IsValid: true} }

// emailRegex accepts the local@domain.tld shape. Deliverability is decided
// by the receiving server, not this regex.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// hostnameRegex accepts dot-separated labels of alphanumerics and hyphens.
var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)

// disposableDomains are flagged with a warning, not rejected: throwaway
// inboxes usually accept mail, they just never get read again.
var disposableDomains = map[string]bool{
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"tempmail.com":      true,
	"throwaway.email":   true,
	"yopmail.com":       true,
}

// domainTypos maps common misspellings to the likely intended domain.
var domainTypos = map[string]string{
	"gmial.com":   "gmail.com",
	"gamil.com":   "gmail.com",
	"gmail.co":    "gmail.com",
	"hotmial.com": "hotmail.com",
	"outlok.com":  "outlook.com",
	"yaho.com":    "yahoo.com",
	"yahooo.com":  "yahoo.com",
}

// EmailAddress validates the syntax of a recipient address and warns about
// disposable domains and likely typos.
func EmailAddress(email string) Result {
	r := ok()
	email = strings.TrimSpace(email)

	if email == "" {
		r.addError(emailerror.Validation("email address is required"))
		return r
	}
	if !emailRegex.MatchString(email) {
		r.addError(emailerror.Validation(fmt.Sprintf("%q is not a valid email address", email)))
		return r
	}

	domainPart := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	if disposableDomains[domainPart] {
		r.addWarning("%s is a disposable email domain; delivery may be wasted", domainPart)
	}
	if suggestion, typo := domainTypos[domainPart]; typo {
		r.addWarning("domain %s looks like a typo of %s", domainPart, suggestion)
	}
	return r
}

// SMTPConfig validates the per-event SMTP settings.
func SMTPConfig(cfg domain.EmailConfig) Result {
	r := ok()

	if strings.TrimSpace(cfg.Host) == "" {
		r.addError(emailerror.Configuration("SMTP host is required"))
	} else if !hostnameRegex.MatchString(cfg.Host) {
		r.addError(emailerror.Configuration(fmt.Sprintf("%q is not a valid hostname", cfg.Host)))
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		r.addError(emailerror.Configuration(fmt.Sprintf("SMTP port %d is outside 1-65535", cfg.Port)))
	}
	if strings.TrimSpace(cfg.Username) == "" {
		r.addError(emailerror.Configuration("SMTP username is required"))
	}
	if cfg.Password == "" {
		r.addError(emailerror.Configuration("SMTP password is required"))
	}
	if strings.TrimSpace(cfg.FromName) == "" {
		r.addError(emailerror.Configuration("from name is required"))
	}

	if strings.TrimSpace(cfg.FromAddress) == "" {
		r.addError(emailerror.Configuration("from address is required"))
	} else if addr := EmailAddress(cfg.FromAddress); !addr.IsValid {
		r.addError(emailerror.Configuration(fmt.Sprintf("from address %q is not a valid email address", cfg.FromAddress)))
	}

	return r
}

// requiredPlaceholders must appear somewhere across subject+html+text so
// every recipient sees a personalized message.
var requiredPlaceholders = []string{"{participantName}", "{eventTitle}", "{certificateId}"}

// forbiddenHTMLTags fail template validation outright. The sanitizer in the
// transport client is a backstop, not a substitute for rejecting these.
var forbiddenHTMLTags = []string{"<script", "<iframe", "<object", "<embed"}

// EmailTemplate validates the message template.
func EmailTemplate(tpl domain.EmailTemplate) Result {
	r := ok()

	if strings.TrimSpace(tpl.Subject) == "" {
		r.addError(emailerror.Template("subject is required"))
	}
	if strings.TrimSpace(tpl.HTML) == "" {
		r.addError(emailerror.Template("html body is required"))
	}
	if strings.TrimSpace(tpl.Text) == "" {
		r.addWarning("plain-text body is empty; recipients with text-only clients see nothing")
	}

	combined := tpl.Subject + tpl.HTML + tpl.Text
	for _, ph := range requiredPlaceholders {
		if !strings.Contains(combined, ph) {
			r.addWarning("template never uses %s; every recipient gets identical content there", ph)
		}
	}

	lowerHTML := strings.ToLower(tpl.HTML)
	for _, tag := range forbiddenHTMLTags {
		if strings.Contains(lowerHTML, tag) {
			r.addError(emailerror.Template(fmt.Sprintf("html body contains forbidden tag %s>", tag)))
		}
	}

	return r
}

// Participant validates that a participant can receive a certificate email.
func Participant(p domain.Participant) Result {
	r := ok()

	if strings.TrimSpace(p.Name) == "" {
		r.addError(emailerror.Validation("participant name is required"))
	}
	if strings.TrimSpace(p.CertificationID) == "" {
		r.addError(emailerror.Validation("certification id is required"))
	}
	if strings.TrimSpace(p.Email) == "" {
		r.addError(emailerror.Validation("participant has no email address"))
	} else {
		r.merge(EmailAddress(p.Email))
	}

	return r
}

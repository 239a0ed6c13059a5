package smtp

import (
	"strings"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

// TemplateVars holds the values substituted into an email template.
type TemplateVars struct {
	ParticipantName string
	EventTitle      string
	CertificateID   string
	EventDate       string
}

// replacements returns the literal token table. Substitution is plain
// string replacement: no escaping, no conditionals, no template engine.
func (v TemplateVars) replacements() [][2]string {
	return [][2]string{
		{"{participantName}", v.ParticipantName},
		{"{eventTitle}", v.EventTitle},
		{"{certificateId}", v.CertificateID},
		{"{eventDate}", v.EventDate},
	}
}

// RenderText substitutes the recognized tokens in a single string.
func RenderText(s string, vars TemplateVars) string {
	for _, r := range vars.replacements() {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}

// RenderTemplate substitutes tokens across subject, html, and text. The
// html body is sanitized before substitution so injected participant data
// cannot resurrect a stripped construct.
func RenderTemplate(tpl domain.EmailTemplate, vars TemplateVars) domain.EmailTemplate {
	return domain.EmailTemplate{
		Subject: RenderText(tpl.Subject, vars),
		HTML:    RenderText(SanitizeHTML(tpl.HTML), vars),
		Text:    RenderText(tpl.Text, vars),
	}
}

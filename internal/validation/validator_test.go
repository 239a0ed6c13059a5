package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
)

func TestEmailAddress_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"missing at", "userexample.com"},
		{"missing domain", "user@"},
		{"missing tld", "user@example"},
		{"spaces", "user name@example.com"},
		{"double at", "user@@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EmailAddress(tt.email)
			assert.False(t, r.IsValid)
			require.NotEmpty(t, r.Errors)
			assert.Equal(t, emailerror.KindValidation, r.Errors[0].Kind)
		})
	}
}

func TestEmailAddress_DisposableDomainWarns(t *testing.T) {
	r := EmailAddress("someone@mailinator.com")
	assert.True(t, r.IsValid, "disposable domains pass validation")
	assert.NotEmpty(t, r.Warnings)
}

func TestEmailAddress_TypoSuggestion(t *testing.T) {
	r := EmailAddress("someone@gmial.com")
	assert.True(t, r.IsValid)
	require.NotEmpty(t, r.Warnings)
	assert.Contains(t, r.Warnings[0], "gmail.com")
}

func validConfig() domain.EmailConfig {
	return domain.EmailConfig{
		Host:        "smtp.example.com",
		Port:        587,
		Username:    "mailer",
		Password:    "hunter2",
		FromName:    "Certificates",
		FromAddress: "certs@example.com",
		Enabled:     true,
	}
}

func TestSMTPConfig(t *testing.T) {
	assert.True(t, SMTPConfig(validConfig()).IsValid)

	tests := []struct {
		name   string
		mutate func(*domain.EmailConfig)
	}{
		{"empty host", func(c *domain.EmailConfig) { c.Host = "" }},
		{"bad hostname", func(c *domain.EmailConfig) { c.Host = "smtp_.example!" }},
		{"port zero", func(c *domain.EmailConfig) { c.Port = 0 }},
		{"port too high", func(c *domain.EmailConfig) { c.Port = 70000 }},
		{"empty user", func(c *domain.EmailConfig) { c.Username = "" }},
		{"empty pass", func(c *domain.EmailConfig) { c.Password = "" }},
		{"empty from name", func(c *domain.EmailConfig) { c.FromName = "" }},
		{"bad from address", func(c *domain.EmailConfig) { c.FromAddress = "not-an-address" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			r := SMTPConfig(cfg)
			assert.False(t, r.IsValid)
			require.NotEmpty(t, r.Errors)
			assert.Equal(t, emailerror.KindConfiguration, r.Errors[0].Kind)
		})
	}
}

func validTemplate() domain.EmailTemplate {
	return domain.EmailTemplate{
		Subject: "Your Certificate - {eventTitle}",
		HTML:    "<p>Hi {participantName}, certificate {certificateId} is attached.</p>",
		Text:    "Hi {participantName}, certificate {certificateId} is attached.",
	}
}

func TestEmailTemplate(t *testing.T) {
	assert.True(t, EmailTemplate(validTemplate()).IsValid)

	t.Run("empty subject fails", func(t *testing.T) {
		tpl := validTemplate()
		tpl.Subject = ""
		assert.False(t, EmailTemplate(tpl).IsValid)
	})

	t.Run("empty html fails", func(t *testing.T) {
		tpl := validTemplate()
		tpl.HTML = ""
		assert.False(t, EmailTemplate(tpl).IsValid)
	})

	t.Run("empty text warns only", func(t *testing.T) {
		tpl := validTemplate()
		tpl.Text = ""
		r := EmailTemplate(tpl)
		assert.True(t, r.IsValid)
		assert.NotEmpty(t, r.Warnings)
	})

	t.Run("missing placeholder warns", func(t *testing.T) {
		tpl := domain.EmailTemplate{Subject: "hello", HTML: "<p>hello</p>", Text: "hello"}
		r := EmailTemplate(tpl)
		assert.True(t, r.IsValid)
		assert.Len(t, r.Warnings, 3)
	})

	t.Run("dangerous tags fail case-insensitively", func(t *testing.T) {
		for _, body := range []string{
			"<SCRIPT>alert(1)</SCRIPT>",
			"<iframe src='x'>",
			"<ObJeCt data='x'>",
			"<embed src='x'>",
		} {
			tpl := validTemplate()
			tpl.HTML += body
			r := EmailTemplate(tpl)
			assert.False(t, r.IsValid, "body %q must fail", body)
			assert.Equal(t, emailerror.KindTemplate, r.Errors[0].Kind)
		}
	})
}

func TestParticipant(t *testing.T) {
	p := domain.Participant{Name: "John Doe", CertificationID: "CERT-2024-001", Email: "john@example.com"}
	assert.True(t, Participant(p).IsValid)

	t.Run("missing fields", func(t *testing.T) {
		for _, mutate := range []func(*domain.Participant){
			func(p *domain.Participant) { p.Name = "" },
			func(p *domain.Participant) { p.CertificationID = "" },
			func(p *domain.Participant) { p.Email = "" },
			func(p *domain.Participant) { p.Email = "nope" },
		} {
			bad := p
			mutate(&bad)
			assert.False(t, Participant(bad).IsValid)
		}
	})
}

// Package smtp wraps one configured SMTP connection for certificate email
// delivery.
//
// The client performs the full transaction (dial, optional TLS, auth, send)
// per message and converts every transport failure into the email error
// taxonomy at this boundary — callers never see a raw net/smtp error.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
	"github.com/MG177/certificate-generator-v2-sub000/internal/validation"
)

// Result is the outcome of one send attempt.
type Result struct {
	Success   bool              `json:"success"`
	MessageID string            `json:"message_id,omitempty"`
	Err       *emailerror.Error `json:"error,omitempty"`
}

// Retryable reports whether the failure (if any) is worth an automatic retry.
func (r Result) Retryable() bool {
	return r.Err != nil && r.Err.Retryable
}

func failure(err *emailerror.Error) Result { return Result{Err: err} }

// Client sends mail through one event's SMTP configuration. Safe for
// concurrent use; each send runs its own transaction.
type Client struct {
	cfg     domain.EmailConfig
	timeout time.Duration
}

// NewClient creates a transport client for the given configuration. The
// config is assumed validated by the validation orchestrator; the client
// still fails fast on per-message problems.
func NewClient(cfg domain.EmailConfig) *Client {
	return &Client{cfg: cfg, timeout: 30 * time.Second}
}

// TestConnection verifies connectivity and authentication without sending.
// Returns nil on success, a classified error otherwise.
func (c *Client) TestConnection(ctx context.Context) *emailerror.Error {
	client, err := c.connect(ctx)
	if err != nil {
		return emailerror.Classify(err)
	}
	defer client.Close()

	if err := c.authenticate(client); err != nil {
		return emailerror.Classify(err)
	}
	if err := client.Quit(); err != nil {
		// The session served its purpose; a noisy QUIT is not a failure.
		return nil
	}
	return nil
}

// SendEmail submits one message. The recipient address is validated first
// and fails fast with a non-retryable validation error.
func (c *Client) SendEmail(ctx context.Context, msg Message) Result {
	if addr := validation.EmailAddress(msg.To); !addr.IsValid {
		return failure(addr.Errors[0])
	}

	if msg.FromName == "" {
		msg.FromName = c.cfg.FromName
	}
	if msg.FromAddress == "" {
		msg.FromAddress = c.cfg.FromAddress
	}

	raw, messageID := buildMIME(msg, c.cfg.Host)

	if err := c.transact(ctx, msg.To, raw); err != nil {
		return failure(emailerror.Classify(err))
	}
	return Result{Success: true, MessageID: messageID}
}

// SendCertificate renders the template for one participant, attaches the
// certificate PNG under its deterministic name, and sends.
func (c *Client) SendCertificate(ctx context.Context, to string, vars TemplateVars, certificate []byte, tpl domain.EmailTemplate) Result {
	if len(certificate) == 0 {
		return failure(emailerror.Attachment(fmt.Errorf("certificate image is empty")))
	}

	rendered := RenderTemplate(tpl, vars)
	subject := rendered.Subject
	if c.cfg.Subject != "" && tpl.Subject == "" {
		subject = RenderText(c.cfg.Subject, vars)
	}

	return c.SendEmail(ctx, Message{
		To:             to,
		Subject:        subject,
		HTML:           rendered.HTML,
		Text:           rendered.Text,
		Attachment:     certificate,
		AttachmentName: CertificateAttachmentName(vars.CertificateID),
	})
}

// connect dials the server and returns an smtp.Client with TLS negotiated
// according to the config (implicit TLS when Secure, STARTTLS when offered
// otherwise).
func (c *Client) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if c.cfg.Secure {
		conn = tls.Client(conn, &tls.Config{ServerName: c.cfg.Host})
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if !c.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	return client, nil
}

func (c *Client) authenticate(client *smtp.Client) error {
	if c.cfg.Username == "" {
		return nil
	}
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return nil
}

// transact runs one full SMTP transaction for the message.
func (c *Client) transact(ctx context.Context, to string, raw []byte) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := c.authenticate(client); err != nil {
		return err
	}
	if err := client.Mail(c.cfg.FromAddress); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	// Some servers slam the connection after DATA; the message is already
	// accepted at this point.
	_ = client.Quit()
	return nil
}

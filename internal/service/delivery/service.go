package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/logger"
	"github.com/MG177/certificate-generator-v2-sub000/internal/ratelimit"
	"github.com/MG177/certificate-generator-v2-sub000/internal/retry"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
	"github.com/MG177/certificate-generator-v2-sub000/internal/validation"
)

// Deps wires the delivery service's collaborators. The limiter is an
// explicit dependency, never package state, so tests run isolated and a
// Redis-backed limiter can be swapped in for multi-instance deployments.
type Deps struct {
	Events    EventRepository
	Logs      EmailLogRepository
	Limiter   ratelimit.Limiter
	Transport TransportFactory
	Render    RenderFunc

	// HourlyLimit caps sends per event per window (0 = ratelimit.DefaultLimit).
	HourlyLimit int
	// BatchSize caps in-flight sends per bulk batch (0 = 5).
	BatchSize int
	// BatchDelay paces consecutive bulk batches (0 = 1s; tests pass negative
	// to disable).
	BatchDelay time.Duration
}

// Service drives certificate email delivery. Safe for concurrent use if
// the repositories are.
type Service struct {
	events      EventRepository
	logs        EmailLogRepository
	limiter     ratelimit.Limiter
	transport   TransportFactory
	render      RenderFunc
	hourlyLimit int
	batchSize   int
	batchDelay  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewService creates the delivery service.
func NewService(deps Deps) *Service {
	s := &Service{
		events:      deps.Events,
		logs:        deps.Logs,
		limiter:     deps.Limiter,
		transport:   deps.Transport,
		render:      deps.Render,
		hourlyLimit: deps.HourlyLimit,
		batchSize:   deps.BatchSize,
		batchDelay:  deps.BatchDelay,
		now:         time.Now,
		sleep:       ctxSleep,
	}
	if s.hourlyLimit <= 0 {
		s.hourlyLimit = ratelimit.DefaultLimit
	}
	if s.batchSize <= 0 {
		s.batchSize = 5
	}
	if s.batchDelay == 0 {
		s.batchDelay = time.Second
	}
	if s.batchDelay < 0 {
		s.batchDelay = 0
	}
	return s
}

// SendOutcome is the result of one orchestrated send. Transport and render
// failures are always folded in here, never raised to the caller.
type SendOutcome struct {
	Success    bool               `json:"success"`
	MessageID  string             `json:"message_id,omitempty"`
	Err        *emailerror.Error  `json:"error,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
}

func blocked(vr validation.Result) *SendOutcome {
	out := &SendOutcome{Validation: &vr}
	if len(vr.Errors) > 0 {
		out.Err = vr.Errors[0]
	}
	return out
}

// SendToParticipant runs the single-participant state machine: validate,
// rate-limit, render, send, persist the status transition, append the audit
// entry. A validation block or exhausted rate limit mutates nothing.
func (s *Service) SendToParticipant(ctx context.Context, eventID, certificationID string) (*SendOutcome, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participant := event.Participant(certificationID)
	if participant == nil {
		return nil, ErrParticipantNotFound
	}

	if vr := validation.ForSend(event, *participant); !vr.IsValid {
		return blocked(vr), nil
	}

	// One limiter slot per attempted send; in-attempt retries don't
	// consume extra slots.
	allowed, err := s.limiter.Allow(ctx, eventID, s.hourlyLimit)
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing send", "event_id", eventID, "error", err.Error())
		allowed = true
	}
	if !allowed {
		return &SendOutcome{Err: emailerror.RateLimit(eventID)}, nil
	}

	s.markPending(ctx, eventID, participant)

	res := s.attempt(ctx, event, *participant)
	if res.Success {
		return s.recordSuccess(ctx, eventID, participant, res.MessageID), nil
	}
	return s.recordFailure(ctx, eventID, participant, res.Err), nil
}

// attempt renders the certificate and drives the transport, retrying
// retryable failures within the policy's budget. Panics from collaborators
// are caught and converted — a bad participant never takes down a batch.
func (s *Service) attempt(ctx context.Context, event *domain.Event, p domain.Participant) (res smtp.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("send panicked", "event_id", event.ID, "participant", p.CertificationID, "panic", fmt.Sprint(r))
			res = smtp.Result{Err: emailerror.Unknown(fmt.Errorf("send panicked: %v", r))}
		}
	}()

	certificate, err := s.render(ctx, event, p)
	if err != nil {
		return smtp.Result{Err: emailerror.Attachment(err)}
	}

	vars := smtp.TemplateVars{
		ParticipantName: p.Name,
		EventTitle:      event.Title,
		CertificateID:   p.CertificationID,
		EventDate:       event.EventDate.Format("2006-01-02"),
	}
	transport := s.transport(event.EmailConfig)

	for attemptNo := 0; ; attemptNo++ {
		res = transport.SendCertificate(ctx, p.Email, vars, certificate, event.EmailTemplate)
		if res.Success || !retry.ShouldRetry(res.Err, attemptNo) {
			return res
		}
		delay := retry.DelayFor(res.Err, attemptNo)
		logger.Info("retrying send", "event_id", event.ID, "participant", p.CertificationID,
			"attempt", attemptNo+1, "delay", delay.String(), "kind", string(res.Err.Kind))
		s.sleep(ctx, delay)
		if ctx.Err() != nil {
			return res
		}
	}
}

func (s *Service) markPending(ctx context.Context, eventID string, p *domain.Participant) {
	p.EmailStatus = domain.EmailPending
	if err := s.events.UpdateParticipant(ctx, eventID, *p); err != nil {
		logger.Warn("persist pending status failed", "event_id", eventID, "participant", p.CertificationID, "error", err.Error())
	}
}

func (s *Service) recordSuccess(ctx context.Context, eventID string, p *domain.Participant, messageID string) *SendOutcome {
	now := s.now().UTC()
	p.EmailStatus = domain.EmailSent
	p.LastEmailSent = &now
	p.EmailError = ""
	p.EmailRetryCount = 0

	if err := s.events.UpdateParticipant(ctx, eventID, *p); err != nil {
		// The mail is out; the log entry below is what reconciliation
		// will trust.
		logger.Error("persist sent status failed", "event_id", eventID, "participant", p.CertificationID, "error", err.Error())
	}
	s.appendLog(ctx, &domain.EmailLog{
		EventID:       eventID,
		ParticipantID: p.CertificationID,
		EmailAddress:  p.Email,
		Status:        domain.EmailSent,
		MessageID:     messageID,
		SentAt:        &now,
		RetryCount:    0,
	})
	return &SendOutcome{Success: true, MessageID: messageID}
}

func (s *Service) recordFailure(ctx context.Context, eventID string, p *domain.Participant, emailErr *emailerror.Error) *SendOutcome {
	now := s.now().UTC()
	p.EmailStatus = domain.EmailFailed
	p.EmailError = emailErr.UserMessage
	p.EmailRetryCount++

	if err := s.events.UpdateParticipant(ctx, eventID, *p); err != nil {
		logger.Error("persist failed status failed", "event_id", eventID, "participant", p.CertificationID, "error", err.Error())
	}
	s.appendLog(ctx, &domain.EmailLog{
		EventID:       eventID,
		ParticipantID: p.CertificationID,
		EmailAddress:  p.Email,
		Status:        domain.EmailFailed,
		ErrorMessage:  emailErr.UserMessage,
		RetryCount:    p.EmailRetryCount,
		LastRetryAt:   &now,
	})
	return &SendOutcome{Err: emailErr}
}

func (s *Service) appendLog(ctx context.Context, entry *domain.EmailLog) {
	entry.CreatedAt = s.now().UTC()
	if _, err := s.logs.Append(ctx, entry); err != nil {
		logger.Error("append email log failed", "event_id", entry.EventID, "participant", entry.ParticipantID, "error", err.Error())
	}
}

// Resend re-enters the full send path for a previously failed participant.
// This is the user-triggered operation: unlike the automatic in-attempt
// retry it is unbounded and resets the participant to not_sent first.
func (s *Service) Resend(ctx context.Context, eventID, certificationID string) (*SendOutcome, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participant := event.Participant(certificationID)
	if participant == nil {
		return nil, ErrParticipantNotFound
	}

	participant.EmailStatus = domain.EmailNotSent
	participant.EmailError = ""
	if err := s.events.UpdateParticipant(ctx, eventID, *participant); err != nil {
		return nil, fmt.Errorf("reset participant status: %w", err)
	}

	return s.SendToParticipant(ctx, eventID, certificationID)
}

// TestConfig validates an event's SMTP configuration and, if it passes,
// verifies connectivity and authentication without sending.
func (s *Service) TestConfig(ctx context.Context, eventID string) (*SendOutcome, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if vr := validation.ForConfig(event.EmailConfig); !vr.IsValid {
		return blocked(vr), nil
	}
	if connErr := s.transport(event.EmailConfig).TestConnection(ctx); connErr != nil {
		return &SendOutcome{Err: connErr}, nil
	}
	return &SendOutcome{Success: true}, nil
}

// TestTemplate validates an event's email template.
func (s *Service) TestTemplate(ctx context.Context, eventID string) (*SendOutcome, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	vr := validation.ForTemplateTest(event.EmailTemplate)
	if !vr.IsValid {
		return blocked(vr), nil
	}
	return &SendOutcome{Success: true, Validation: &vr}, nil
}

// Logs returns an event's audit entries, newest first.
func (s *Service) Logs(ctx context.Context, eventID string) ([]domain.EmailLog, error) {
	return s.logs.ListByEvent(ctx, eventID)
}

// PurgeLogs deletes audit entries older than the retention period.
func (s *Service) PurgeLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.logs.PurgeOlderThan(ctx, s.now().Add(-retention))
}

// ReconcileEvent re-derives each participant's delivery state from its
// newest audit entry. Idempotent; run after a crash that may have split a
// send from its status write.
func (s *Service) ReconcileEvent(ctx context.Context, eventID string) (int, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	entries, err := s.logs.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list email logs: %w", err)
	}

	// Entries are newest-first; keep the first per participant.
	latest := make(map[string]*domain.EmailLog, len(entries))
	for i := range entries {
		if _, seen := latest[entries[i].ParticipantID]; !seen {
			latest[entries[i].ParticipantID] = &entries[i]
		}
	}

	fixed := 0
	for i := range event.Participants {
		p := &event.Participants[i]
		entry, ok := latest[p.CertificationID]
		if !ok || p.EmailStatus == entry.Status {
			continue
		}
		p.EmailStatus = entry.Status
		if entry.Status == domain.EmailSent {
			p.LastEmailSent = entry.SentAt
			p.EmailError = ""
			p.EmailRetryCount = 0
		} else {
			p.EmailError = entry.ErrorMessage
			p.EmailRetryCount = entry.RetryCount
		}
		fixed++
	}

	if fixed > 0 {
		if err := s.events.ReplaceParticipants(ctx, eventID, event.Participants); err != nil {
			return 0, fmt.Errorf("persist reconciled participants: %w", err)
		}
		logger.Info("reconciled participant statuses", "event_id", eventID, "updated", fmt.Sprint(fixed))
	}
	return fixed, nil
}

// ctxSleep waits for the duration or until the context is done.
func ctxSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
)

// concurrencyGate tracks the peak number of simultaneous callers.
type concurrencyGate struct {
	mu      sync.Mutex
	current int
	max     int
}

func (g *concurrencyGate) enter() {
	g.mu.Lock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
	g.mu.Unlock()
	// Give the rest of the batch a chance to pile up.
	time.Sleep(5 * time.Millisecond)
}

func (g *concurrencyGate) leave() {
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
}

func (g *concurrencyGate) peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

type gatedTransport struct {
	inner Transport
	gate  *concurrencyGate
}

func (t *gatedTransport) TestConnection(ctx context.Context) *emailerror.Error {
	return t.inner.TestConnection(ctx)
}

func (t *gatedTransport) SendCertificate(ctx context.Context, to string, vars smtp.TemplateVars, cert []byte, tpl domain.EmailTemplate) smtp.Result {
	t.gate.enter()
	defer t.gate.leave()
	return t.inner.SendCertificate(ctx, to, vars, cert, tpl)
}

func bulkParticipants() []domain.Participant {
	return []domain.Participant{
		{Name: "Alice", CertificationID: "CERT-A", Email: "alice@example.com", EmailStatus: domain.EmailNotSent},
		{Name: "Bob", CertificationID: "CERT-B", Email: "bob@example.com", EmailStatus: domain.EmailNotSent},
		{Name: "Carol", CertificationID: "CERT-C", Email: "carol@example.com", EmailStatus: domain.EmailNotSent},
	}
}

func TestBulkSend_AllSucceed(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Sent)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Skipped)
	assert.Empty(t, res.Errors)

	for _, id := range []string{"CERT-A", "CERT-B", "CERT-C"} {
		p := f.events.participant(t, "evt-1", id)
		assert.Equal(t, domain.EmailSent, p.EmailStatus, id)
	}
}

func TestBulkSend_PartialFailureIsStillSuccess(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))
	f.transport.results["bob@example.com"] = []smtp.Result{
		{Err: emailerror.Delivery(errors.New("550 mailbox unavailable"))},
	}

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)

	// One recipient bounced; the batch still counts as a success because
	// two emails went out.
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "CERT-B", res.Errors[0].CertificationID)
	assert.NotEmpty(t, res.Errors[0].Message)

	p := f.events.participant(t, "evt-1", "CERT-B")
	assert.Equal(t, domain.EmailFailed, p.EmailStatus)
}

func TestBulkSend_AllFail(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))
	bounce := smtp.Result{Err: emailerror.Delivery(errors.New("550 rejected"))}
	for _, addr := range []string{"alice@example.com", "bob@example.com", "carol@example.com"} {
		f.transport.results[addr] = []smtp.Result{bounce}
	}

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 3, res.Failed)
	assert.Len(t, res.Errors, 3)
}

func TestBulkSend_SkipsParticipantsWithoutEmail(t *testing.T) {
	ps := bulkParticipants()
	ps = append(ps, domain.Participant{Name: "Dave", CertificationID: "CERT-D", EmailStatus: domain.EmailNotSent})
	f := newFixture(t, testEvent(ps...))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	// Skipped is not failed and produces no error entry.
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.Warnings)

	p := f.events.participant(t, "evt-1", "CERT-D")
	assert.Equal(t, domain.EmailNotSent, p.EmailStatus)
}

func TestBulkSend_SubsetSelection(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", []string{"CERT-A", "CERT-C"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Sent)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Skipped)

	// Only the selected participants are touched.
	assert.Equal(t, 1, f.transport.sendCount("alice@example.com"))
	assert.Equal(t, 1, f.transport.sendCount("carol@example.com"))
	assert.Zero(t, f.transport.sendCount("bob@example.com"))
	p := f.events.participant(t, "evt-1", "CERT-B")
	assert.Equal(t, domain.EmailNotSent, p.EmailStatus)
}

func TestBulkSend_UnknownSelectionID(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", []string{"CERT-A", "CERT-NOPE"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "CERT-NOPE", res.Errors[0].CertificationID)
	assert.Contains(t, res.Errors[0].Message, "not found")
}

func TestBulkSend_SkipsMalformedAddress(t *testing.T) {
	ps := bulkParticipants()
	ps = append(ps, domain.Participant{
		Name: "Eve", CertificationID: "CERT-E", Email: "not-an-address", EmailStatus: domain.EmailNotSent,
	})
	f := newFixture(t, testEvent(ps...))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Sent)
	// A malformed address is skipped up front like an empty one: warned
	// about, never attempted, never marked failed.
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.Warnings)

	p := f.events.participant(t, "evt-1", "CERT-E")
	assert.Equal(t, domain.EmailNotSent, p.EmailStatus)
}

func TestBulkSend_NoUsableAddresses(t *testing.T) {
	f := newFixture(t, testEvent(
		domain.Participant{Name: "X", CertificationID: "CERT-X", EmailStatus: domain.EmailNotSent},
		domain.Participant{Name: "Y", CertificationID: "CERT-Y", EmailStatus: domain.EmailNotSent},
	))

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	require.NotEmpty(t, res.Errors)
	assert.Zero(t, f.transport.sendCount("alice@example.com"))
}

func TestBulkSend_DisabledEvent(t *testing.T) {
	event := testEvent(bulkParticipants()...)
	event.EmailSettings.Enabled = false
	f := newFixture(t, event)

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Sent)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "disabled")
}

func TestBulkSend_UnknownEvent(t *testing.T) {
	f := newFixture(t, testEvent())
	_, err := f.svc.BulkSend(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestBulkSend_BatchesBoundConcurrency(t *testing.T) {
	// Eleven recipients with batch size 5: three batches, and no more than
	// five transport calls ever in flight together.
	var ps []domain.Participant
	addrs := []string{
		"p01@example.com", "p02@example.com", "p03@example.com", "p04@example.com",
		"p05@example.com", "p06@example.com", "p07@example.com", "p08@example.com",
		"p09@example.com", "p10@example.com", "p11@example.com",
	}
	for i, addr := range addrs {
		ps = append(ps, domain.Participant{
			Name: "P", CertificationID: addrs[i][:3], Email: addr, EmailStatus: domain.EmailNotSent,
		})
	}
	f := newFixture(t, testEvent(ps...))

	gate := &concurrencyGate{}
	f.svc.transport = func(domain.EmailConfig) Transport {
		return &gatedTransport{inner: f.transport, gate: gate}
	}

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 11, res.Sent)
	assert.LessOrEqual(t, gate.peak(), 5)
}

func TestBulkSend_PanickingParticipantDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t, testEvent(bulkParticipants()...))
	f.svc.render = func(_ context.Context, _ *domain.Event, p domain.Participant) ([]byte, error) {
		if p.CertificationID == "CERT-B" {
			panic("renderer bug")
		}
		return []byte{1}, nil
	}

	res, err := f.svc.BulkSend(context.Background(), "evt-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
}

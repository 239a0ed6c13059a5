package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/emailerror"
	"github.com/MG177/certificate-generator-v2-sub000/internal/ratelimit"
	"github.com/MG177/certificate-generator-v2-sub000/internal/render"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
)

// memEvents backs both the event service and the delivery service in tests.
type memEvents struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

func (m *memEvents) get(id string) (*domain.Event, bool) {
	e, ok := m.events[id]
	return e, ok
}

func (m *memEvents) Get(_ context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(id)
	if !ok || e.Deleted {
		return nil, event.ErrNotFound
	}
	cp := *e
	cp.Participants = append([]domain.Participant(nil), e.Participants...)
	return &cp, nil
}

func (m *memEvents) List(_ context.Context, f event.ListFilter) ([]domain.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if !e.Deleted {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (m *memEvents) Create(_ context.Context, e *domain.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memEvents) Update(_ context.Context, id string, u event.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(id)
	if !ok || e.Deleted {
		return event.ErrNotFound
	}
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.TemplatePath != nil {
		e.TemplatePath = *u.TemplatePath
	}
	if u.NameConfig != nil {
		e.NameConfig = *u.NameConfig
	}
	if u.IDConfig != nil {
		e.IDConfig = *u.IDConfig
	}
	return nil
}

func (m *memEvents) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(id)
	if !ok || e.Deleted {
		return event.ErrNotFound
	}
	e.Deleted = true
	return nil
}

func (m *memEvents) SetStatus(_ context.Context, id string, status domain.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(id)
	if !ok || e.Deleted {
		return event.ErrNotFound
	}
	e.Status = status
	return nil
}

func (m *memEvents) ReplaceParticipants(_ context.Context, id string, ps []domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(id)
	if !ok || e.Deleted {
		return event.ErrNotFound
	}
	e.Participants = append([]domain.Participant(nil), ps...)
	return nil
}

func (m *memEvents) UpdateParticipant(_ context.Context, eventID string, p domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(eventID)
	if !ok {
		return delivery.ErrEventNotFound
	}
	for i := range e.Participants {
		if e.Participants[i].CertificationID == p.CertificationID {
			e.Participants[i] = p
			return nil
		}
	}
	return delivery.ErrParticipantNotFound
}

type memLogs struct {
	mu      sync.Mutex
	entries []domain.EmailLog
}

func (m *memLogs) Append(_ context.Context, entry *domain.EmailLog) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := *entry
	e.ID = fmt.Sprintf("log-%d", len(m.entries)+1)
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *memLogs) ListByEvent(_ context.Context, eventID string) ([]domain.EmailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EmailLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].EventID == eventID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memLogs) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubTransport struct{ result smtp.Result }

func (s *stubTransport) TestConnection(context.Context) *emailerror.Error { return nil }
func (s *stubTransport) SendCertificate(context.Context, string, smtp.TemplateVars, []byte, domain.EmailTemplate) smtp.Result {
	return s.result
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setupTestServer(t *testing.T) (*httptest.Server, *memEvents) {
	t.Helper()
	repo := &memEvents{events: make(map[string]*domain.Event)}
	logs := &memLogs{}
	store, err := render.NewStore(t.TempDir())
	require.NoError(t, err)

	eventSvc := event.NewService(repo, event.Defaults{
		SMTPHost: "smtp.example.com", SMTPPort: 587,
		Username: "u", Password: "p",
		FromName: "Certificates", FromAddress: "certs@example.com",
	})
	deliverySvc := delivery.NewService(delivery.Deps{
		Events:     repo,
		Logs:       logs,
		Limiter:    ratelimit.NewMemory(),
		Transport:  func(domain.EmailConfig) delivery.Transport { return &stubTransport{result: smtp.Result{Success: true, MessageID: "<m@test>"}} },
		Render:     store.Certificate,
		BatchDelay: -1,
	})

	srv := NewServer(NewHandlers(eventSvc, deliverySvc, store, 1<<20), []string{"*"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHealth(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetEvent(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title":      "Go Conference",
		"event_date": "2026-06-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created domain.Event
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "smtp.example.com", created.EmailConfig.Host)

	getResp, err := http.Get(ts.URL + "/api/events/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	// Password must not appear in API JSON.
	raw, err := json.Marshal(created)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"password"`)
}

func TestGetEventNotFound(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Get(ts.URL + "/api/events/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEventValidation(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp := postJSON(t, ts.URL+"/api/events", map[string]any{"title": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportParticipantsCSV(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "participants.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "Name,Certification ID,Email\nAlice,CERT-A,alice@example.com\n")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost,
		ts.URL+"/api/events/"+created.ID+"/participants/import", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, importResp.StatusCode)

	var updated domain.Event
	decodeBody(t, importResp, &updated)
	require.Len(t, updated.Participants, 1)
	assert.Equal(t, "CERT-A", updated.Participants[0].CertificationID)
}

func TestUploadTemplateAndDownloadCertificate(t *testing.T) {
	ts, repo := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("template", "template.png")
	require.NoError(t, err)
	_, err = fw.Write(testPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/events/"+created.ID+"/template", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	upResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer upResp.Body.Close()
	require.Equal(t, http.StatusOK, upResp.StatusCode)

	// Seed layout + participant directly, then download the rendered PNG.
	repo.mu.Lock()
	e := repo.events[created.ID]
	e.NameConfig = domain.TextConfig{X: 100, Y: 40, FontSize: 20, Align: "center"}
	e.IDConfig = domain.TextConfig{X: 100, Y: 70, FontSize: 10, Align: "center"}
	e.Participants = []domain.Participant{{Name: "Ada", CertificationID: "CERT-1"}}
	repo.mu.Unlock()

	dlResp, err := http.Get(ts.URL + "/api/events/" + created.ID + "/participants/CERT-1/certificate")
	require.NoError(t, err)
	defer dlResp.Body.Close()
	assert.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Equal(t, "image/png", dlResp.Header.Get("Content-Type"))
}

func TestSendEmailValidationBlocked(t *testing.T) {
	ts, repo := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	// Participant without an email: the send is blocked, not errored.
	repo.mu.Lock()
	repo.events[created.ID].Participants = []domain.Participant{
		{Name: "No Mail", CertificationID: "CERT-1"},
	}
	repo.mu.Unlock()

	sendResp := postJSON(t, ts.URL+"/api/events/"+created.ID+"/email/send/CERT-1", nil)
	defer sendResp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, sendResp.StatusCode)

	var out delivery.SendOutcome
	require.NoError(t, json.NewDecoder(sendResp.Body).Decode(&out))
	assert.False(t, out.Success)
	require.NotNil(t, out.Validation)
}

func TestBulkSendSelectedParticipants(t *testing.T) {
	ts, repo := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("template", "template.png")
	require.NoError(t, err)
	_, err = fw.Write(testPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/events/"+created.ID+"/template", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	upResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	upResp.Body.Close()
	require.Equal(t, http.StatusOK, upResp.StatusCode)

	repo.mu.Lock()
	e := repo.events[created.ID]
	e.NameConfig = domain.TextConfig{X: 100, Y: 40, FontSize: 20, Align: "center"}
	e.IDConfig = domain.TextConfig{X: 100, Y: 70, FontSize: 10, Align: "center"}
	e.Participants = []domain.Participant{
		{Name: "Ada", CertificationID: "CERT-1", Email: "ada@example.com", EmailStatus: domain.EmailNotSent},
		{Name: "Bob", CertificationID: "CERT-2", Email: "bob@example.com", EmailStatus: domain.EmailNotSent},
		{Name: "Cy", CertificationID: "CERT-3", Email: "cy@example.com", EmailStatus: domain.EmailNotSent},
	}
	repo.mu.Unlock()

	bulkResp := postJSON(t, ts.URL+"/api/events/"+created.ID+"/email/bulk", map[string]any{
		"certification_ids": []string{"CERT-1", "CERT-3"},
	})
	require.Equal(t, http.StatusOK, bulkResp.StatusCode)

	var res delivery.BulkResult
	decodeBody(t, bulkResp, &res)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Sent)
	assert.Zero(t, res.Failed)

	// The unselected participant keeps its state.
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, p := range repo.events[created.ID].Participants {
		switch p.CertificationID {
		case "CERT-2":
			assert.Equal(t, domain.EmailNotSent, p.EmailStatus)
		default:
			assert.Equal(t, domain.EmailSent, p.EmailStatus)
		}
	}
}

func TestEmailLogsEmpty(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	logsResp, err := http.Get(ts.URL + "/api/events/" + created.ID + "/email/logs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, logsResp.StatusCode)

	var body struct {
		Logs  []domain.EmailLog `json:"logs"`
		Total int               `json:"total"`
	}
	decodeBody(t, logsResp, &body)
	assert.NotNil(t, body.Logs)
	assert.Zero(t, body.Total)
}

func TestDeleteEvent(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", map[string]any{
		"title": "Conf", "event_date": "2026-06-01T00:00:00Z",
	})
	var created domain.Event
	decodeBody(t, resp, &created)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/events/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err := http.Get(ts.URL + "/api/events/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/httputil"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
)

// writeOutcome turns a send outcome into the HTTP response. Blocked or
// failed sends are 422: the request was well-formed, the send was not
// performed (or did not succeed).
func writeOutcome(w http.ResponseWriter, out *delivery.SendOutcome) {
	if out.Success {
		httputil.OK(w, out)
		return
	}
	httputil.JSON(w, http.StatusUnprocessableEntity, out)
}

// SendEmail handles POST /api/events/{eventID}/email/send/{certID}.
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	out, err := h.delivery.SendToParticipant(r.Context(),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "certID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeOutcome(w, out)
}

// ResendEmail handles POST /api/events/{eventID}/email/resend/{certID}.
func (h *Handlers) ResendEmail(w http.ResponseWriter, r *http.Request) {
	out, err := h.delivery.Resend(r.Context(),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "certID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeOutcome(w, out)
}

// BulkSendEmail handles POST /api/events/{eventID}/email/bulk. The body is
// optional: `{"certification_ids": [...]}` targets a subset, no body (or an
// empty list) targets every participant.
func (h *Handlers) BulkSendEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CertificationIDs []string `json:"certification_ids"`
	}
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &body) {
			return
		}
	}
	res, err := h.delivery.BulkSend(r.Context(), chi.URLParam(r, "eventID"), body.CertificationIDs)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// TestEmailConfig handles POST /api/events/{eventID}/email/test-config.
func (h *Handlers) TestEmailConfig(w http.ResponseWriter, r *http.Request) {
	out, err := h.delivery.TestConfig(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeOutcome(w, out)
}

// TestEmailTemplate handles POST /api/events/{eventID}/email/test-template.
func (h *Handlers) TestEmailTemplate(w http.ResponseWriter, r *http.Request) {
	out, err := h.delivery.TestTemplate(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeOutcome(w, out)
}

// EmailLogs handles GET /api/events/{eventID}/email/logs.
func (h *Handlers) EmailLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.delivery.Logs(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.EmailLog{}
	}
	httputil.OK(w, map[string]any{"logs": entries, "total": len(entries)})
}

// ReconcileEmailStatus handles POST /api/events/{eventID}/email/reconcile.
func (h *Handlers) ReconcileEmailStatus(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.delivery.ReconcileEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"updated": fixed})
}

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/httputil"
	"github.com/MG177/certificate-generator-v2-sub000/internal/render"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
)

// ListEvents handles GET /api/events.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	events, total, err := h.events.List(r.Context(), event.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	httputil.OK(w, map[string]any{"events": events, "total": total})
}

// CreateEvent handles POST /api/events.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input event.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	e, err := h.events.Create(r.Context(), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, e)
}

// GetEvent handles GET /api/events/{eventID}.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, e)
}

// UpdateEvent handles PUT /api/events/{eventID}.
func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var u event.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	id := chi.URLParam(r, "eventID")
	if err := h.events.Update(r.Context(), id, u); err != nil {
		serviceError(w, err)
		return
	}
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, e)
}

// DeleteEvent handles DELETE /api/events/{eventID}.
func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ArchiveEvent handles POST /api/events/{eventID}/archive.
func (h *Handlers) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Archive(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// UnarchiveEvent handles POST /api/events/{eventID}/unarchive.
func (h *Handlers) UnarchiveEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Unarchive(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// DuplicateEvent handles POST /api/events/{eventID}/duplicate.
func (h *Handlers) DuplicateEvent(w http.ResponseWriter, r *http.Request) {
	dup, err := h.events.Duplicate(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, dup)
}

// UploadTemplate handles POST /api/events/{eventID}/template. Accepts a
// multipart form with a "template" PNG file.
func (h *Handlers) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("template")
	if err != nil {
		httputil.BadRequest(w, `missing "template" file field`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httputil.BadRequest(w, "read upload: "+err.Error())
		return
	}
	if int64(len(data)) > h.maxUpload {
		httputil.Error(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("template exceeds %d MB limit", h.maxUpload>>20))
		return
	}

	path, err := h.templates.Save(id, data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.events.SetTemplate(r.Context(), id, path); err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"template_path": path})
}

// ImportParticipants handles POST /api/events/{eventID}/participants/import.
// Accepts either a multipart "file" CSV upload or a JSON body of rows.
func (h *Handlers) ImportParticipants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")

	var rows []event.ImportRow
	if mediaTypeIsMultipart(r) {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			httputil.BadRequest(w, "invalid multipart form: "+err.Error())
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, `missing "file" field`)
			return
		}
		defer file.Close()
		rows, err = event.ParseCSV(file)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	} else {
		var body struct {
			Participants []event.ImportRow `json:"participants"`
		}
		if !httputil.Decode(w, r, &body) {
			return
		}
		rows = body.Participants
	}

	e, err := h.events.ImportParticipants(r.Context(), id, rows)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, e)
}

// DownloadCertificate handles
// GET /api/events/{eventID}/participants/{certID}/certificate.
func (h *Handlers) DownloadCertificate(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	certID := chi.URLParam(r, "certID")
	p := e.Participant(certID)
	if p == nil {
		httputil.NotFound(w, "participant not found")
		return
	}

	png, err := h.templates.Certificate(r.Context(), e, *p)
	if err != nil {
		serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", smtp.CertificateAttachmentName(certID)))
	w.Write(png)
}

// DownloadCertificates handles GET /api/events/{eventID}/certificates: a ZIP
// of every participant's rendered certificate.
func (h *Handlers) DownloadCertificates(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		serviceError(w, err)
		return
	}
	if len(e.Participants) == 0 {
		httputil.BadRequest(w, "event has no participants")
		return
	}

	files := make(map[string][]byte, len(e.Participants))
	for _, p := range e.Participants {
		png, err := h.templates.Certificate(r.Context(), e, p)
		if err != nil {
			serviceError(w, err)
			return
		}
		files[smtp.CertificateAttachmentName(p.CertificationID)] = png
	}
	bundle, err := render.Bundle(files)
	if err != nil {
		serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "certificates-"+e.ID+".zip"))
	w.Write(bundle)
}

func mediaTypeIsMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

package api

import (
	"net/http"
	"time"

	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/httputil"
	"github.com/MG177/certificate-generator-v2-sub000/internal/render"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
)

// Handlers holds the services the HTTP layer dispatches to.
type Handlers struct {
	events    *event.Service
	delivery  *delivery.Service
	templates *render.Store
	maxUpload int64

	startedAt time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(events *event.Service, del *delivery.Service, templates *render.Store, maxUpload int64) *Handlers {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handlers{
		events:    events,
		delivery:  del,
		templates: templates,
		maxUpload: maxUpload,
		startedAt: time.Now(),
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

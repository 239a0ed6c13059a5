package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Put("/", h.UpdateEvent)
				r.Delete("/", h.DeleteEvent)

				r.Post("/archive", h.ArchiveEvent)
				r.Post("/unarchive", h.UnarchiveEvent)
				r.Post("/duplicate", h.DuplicateEvent)

				r.Post("/template", h.UploadTemplate)
				r.Post("/participants/import", h.ImportParticipants)
				r.Get("/certificates", h.DownloadCertificates)
				r.Get("/participants/{certID}/certificate", h.DownloadCertificate)

				r.Route("/email", func(r chi.Router) {
					r.Post("/send/{certID}", h.SendEmail)
					r.Post("/resend/{certID}", h.ResendEmail)
					r.Post("/bulk", h.BulkSendEmail)
					r.Post("/test-config", h.TestEmailConfig)
					r.Post("/test-template", h.TestEmailTemplate)
					r.Get("/logs", h.EmailLogs)
					r.Post("/reconcile", h.ReconcileEmailStatus)
				})
			})
		})
	})

	return r
}

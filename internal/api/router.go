package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/incidentdesk/internal/api/middleware"
	"github.com/kiranshivaraju/incidentdesk/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateSession http.HandlerFunc
	GetSession    http.HandlerFunc
	CloseSession  http.HandlerFunc
	ResetSession  http.HandlerFunc
	SetInput      http.HandlerFunc
	Analyze       http.HandlerFunc
	UploadLogFile http.HandlerFunc
	LoadHistory   http.HandlerFunc

	OpenDraft   http.HandlerFunc
	EditDraft   http.HandlerFunc
	SubmitDraft http.HandlerFunc
	CancelDraft http.HandlerFunc

	SetQuestion http.HandlerFunc
	AskFollowup http.HandlerFunc

	ListHistory  http.HandlerFunc
	ClearHistory http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Post("/api/v1/sessions", orNotImplemented(deps.CreateSession))
		r.Route("/api/v1/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.GetSession))
			r.Delete("/", orNotImplemented(deps.CloseSession))
			r.Post("/reset", orNotImplemented(deps.ResetSession))
			r.Put("/input", orNotImplemented(deps.SetInput))
			r.Post("/logfile", orNotImplemented(deps.UploadLogFile))
			r.Post("/history/{entryID}/load", orNotImplemented(deps.LoadHistory))

			r.Post("/draft", orNotImplemented(deps.OpenDraft))
			r.Put("/draft", orNotImplemented(deps.EditDraft))
			r.Delete("/draft", orNotImplemented(deps.CancelDraft))
			r.Put("/followup/draft", orNotImplemented(deps.SetQuestion))

			// Calls that reach the analysis service are rate limited.
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimit.Limit)

				r.Post("/analyze", orNotImplemented(deps.Analyze))
				r.Post("/draft/submit", orNotImplemented(deps.SubmitDraft))
				r.Post("/followup", orNotImplemented(deps.AskFollowup))
			})
		})

		r.Get("/api/v1/history", orNotImplemented(deps.ListHistory))
		r.Delete("/api/v1/history", orNotImplemented(deps.ClearHistory))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

// Package api exposes the stub agent over HTTP with the same routes and
// payloads the real agent serves.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/analysisctl/internal/api/middleware"
	"github.com/kiranshivaraju/analysisctl/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	StatusHandler   http.HandlerFunc
	AnalyzeHandler  http.HandlerFunc
	GetJobHandler   http.HandlerFunc
	ListJobsHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/status", orNotImplemented(deps.StatusHandler))
	r.Post("/analyze", orNotImplemented(deps.AnalyzeHandler))
	r.Get("/analysis/{analysisID}", orNotImplemented(deps.GetJobHandler))
	r.Get("/jobs", orNotImplemented(deps.ListJobsHandler))

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

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/analysisctl/internal/agentstub"
	"github.com/kiranshivaraju/analysisctl/internal/api/response"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// isoLayout matches the agent's timestamps: ISO-8601 without a zone.
const isoLayout = "2006-01-02T15:04:05.999999"

// JobService defines the interface the handlers depend on.
type JobService interface {
	Submit(content, analysisType string) (models.Job, error)
	Get(id string) (models.Job, error)
	List() models.JobList
}

type analyzeRequest struct {
	Content      *string `json:"content"`
	AnalysisType string  `json:"analysis_type"`
}

type analyzeResponse struct {
	ID     string `json:"analysis_id"`
	Status string `json:"status"`
}

type jobResponse struct {
	ID           string          `json:"analysis_id"`
	Status       string          `json:"status"`
	AnalysisType string          `json:"analysis_type"`
	Timestamp    string          `json:"timestamp"`
	CompletedAt  *string         `json:"completed_at"`
	Results      json.RawMessage `json:"results"`
	Error        *string         `json:"error"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /analyze.
func NewAnalyzeHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Content == nil {
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_REQUEST", "content is required", nil)
			return
		}

		job, err := svc.Submit(*req.Content, req.AnalysisType)
		if errors.Is(err, agentstub.ErrClosed) {
			response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Agent is shutting down", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit analysis", nil)
			return
		}
		response.JSON(w, analyzeResponse{ID: job.ID, Status: job.Status})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /analysis/{analysisID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "analysisID")

		job, err := svc.Get(id)
		if errors.Is(err, agentstub.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load analysis", nil)
			return
		}

		response.JSON(w, toJobResponse(job))
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, svc.List())
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /status.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]any{
			"status":         "ready",
			"total_jobs":     svc.List().TotalJobs,
			"analysis_types": models.KnownAnalysisTypes,
		})
	}
}

func toJobResponse(j models.Job) jobResponse {
	out := jobResponse{
		ID:           j.ID,
		Status:       j.Status,
		AnalysisType: j.AnalysisType,
		Timestamp:    j.SubmittedAt.UTC().Format(isoLayout),
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format(isoLayout)
		out.CompletedAt = &s
	}
	if len(j.Result) > 0 {
		out.Results = j.Result
	}
	if j.Error != "" {
		out.Error = &j.Error
	}
	return out
}


// Package jobs provides the REST API handlers that start sync jobs and
// report their status.
package jobs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rovits/poi-sync-service/internal/api/common"
	"github.com/rovits/poi-sync-service/internal/status"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
)

const (
	defaultRadius    = 5000.0
	defaultPlaceType = "restaurant"
)

// Submitter starts a background sync job and returns its id
type Submitter interface {
	Submit(ctx context.Context, req pkgsync.Request) (string, error)
}

// StatusReader looks up a job by id
type StatusReader interface {
	GetStatus(id string) (status.Job, bool)
}

// SubmitResponse is returned when a sync job was accepted
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse describes a sync job. Error is only set for failed jobs.
type StatusResponse struct {
	JobID  string       `json:"jobId"`
	Status status.Phase `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Routes holds the sync job handlers
type Routes struct {
	submitter Submitter
	statuses  StatusReader
}

// Router creates the router mounted at /api/sync
func Router(submitter Submitter, statuses StatusReader) http.Handler {
	routes := &Routes{submitter: submitter, statuses: statuses}

	r := chi.NewRouter()
	r.Post("/locations", routes.syncLocations)
	r.Get("/status/{jobId}", routes.getStatus)

	return r
}

// syncLocations handles POST /api/sync/locations. The response only says
// the job was accepted; its outcome is reported by the status endpoint.
func (rr *Routes) syncLocations(w http.ResponseWriter, r *http.Request) {
	lat, err := common.QueryFloat(r, "lat", 0, true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	lng, err := common.QueryFloat(r, "lng", 0, true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	radius, err := common.QueryFloat(r, "radius", defaultRadius, false)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	jobID, err := rr.submitter.Submit(r.Context(), pkgsync.Request{
		Lat:          lat,
		Lng:          lng,
		RadiusMeters: radius,
		Type:         common.QueryString(r, "type", defaultPlaceType),
	})
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, SubmitResponse{JobID: jobID}, http.StatusAccepted)
}

// getStatus handles GET /api/sync/status/{jobId}
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := common.GetAndValidateURLParam(r, "jobId")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	job, ok := rr.statuses.GetStatus(jobID)
	if !ok {
		slog.DebugContext(r.Context(), "Sync job not found", "job_id", jobID)
		common.WriteErrorResponse(w, common.CodeNotFound, "Sync job not found", http.StatusNotFound)
		return
	}

	resp := StatusResponse{JobID: job.ID, Status: job.Phase}
	if job.Phase == status.PhaseFailed {
		resp.Error = job.Error
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

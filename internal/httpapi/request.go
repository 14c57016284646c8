package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	"github.com/example/reproc/internal/app"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
)

// RequestManager is the request surface of the API.
type RequestManager interface {
	Create(ctx context.Context, input app.CreateRequestInput) (*models.Request, error)
	Get(ctx context.Context, prepid string) (*models.Request, error)
	List(ctx context.Context, limit int) ([]*models.Request, error)
	ListByTicket(ctx context.Context, ticketID string) ([]*models.Request, error)
	Update(ctx context.Context, req *models.Request) (*models.Request, error)
	Delete(ctx context.Context, prepid string) error
	NextStatus(ctx context.Context, prepid string) (*models.Request, error)
	PreviousStatus(ctx context.Context, prepid string) (*models.Request, error)
	UpdateWorkflows(ctx context.Context, prepid string) (*models.Request, error)
	ChangePriority(ctx context.Context, prepid string, priority int) (*models.Request, error)
	OptionReset(ctx context.Context, prepid string) (*models.Request, error)
	RunsForRequest(ctx context.Context, prepid string) ([]int, error)
}

// CreateRequestHandler creates a HandlerFunc that creates a request
// from a subcampaign.
func CreateRequestHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		var input app.CreateRequestInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		req, err := svc.Create(r.Context(), input)
		if err != nil {
			logger.Info(logkeys.Message, "creating request", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "created request", logkeys.PrepID, req.PrepID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(req); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// GetRequestHandler creates a HandlerFunc that fetches one request.
func GetRequestHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		req, err := svc.Get(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "fetching request", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if req == nil {
			JSONError(w, app.ErrNotFound, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(req); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// ListRequestsHandler creates a HandlerFunc that lists requests,
// optionally filtered to the requests created by one ticket.
func ListRequestsHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		var (
			reqs []*models.Request
			err  error
		)
		if ticket := r.URL.Query().Get("ticket"); ticket != "" {
			reqs, err = svc.ListByTicket(r.Context(), ticket)
		} else {
			var limit int
			if limit, err = listLimit(r); err != nil {
				JSONError(w, err, http.StatusBadRequest)
				return
			}
			reqs, err = svc.List(r.Context(), limit)
		}
		if err != nil {
			logger.Info(logkeys.Message, "listing requests", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if reqs == nil {
			reqs = []*models.Request{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reqs); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// UpdateRequestHandler creates a HandlerFunc that updates the editable
// fields of a request. The prepid comes from the URL, not the body.
func UpdateRequestHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		var req models.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		req.PrepID = prepid
		updated, err := svc.Update(r.Context(), &req)
		if err != nil {
			logger.Info(logkeys.Message, "updating request", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(updated); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// DeleteRequestHandler creates a HandlerFunc that deletes a request.
func DeleteRequestHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		if err := svc.Delete(r.Context(), prepid); err != nil {
			logger.Info(logkeys.Message, "deleting request", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "deleted request", logkeys.PrepID, prepid)
		w.WriteHeader(http.StatusNoContent)
	}
}

// requestAction adapts a prepid-keyed service call into a HandlerFunc.
// Used for the status transition and maintenance endpoints, which all
// share the same request/response shape.
func requestAction(name string, fn func(ctx context.Context, prepid string) (*models.Request, error), logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		req, err := fn(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, name, logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, name, logkeys.PrepID, prepid, logkeys.Status, req.Status)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(req); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// NextStatusHandler creates a HandlerFunc that advances a request to
// its next status.
func NextStatusHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return requestAction("advancing status", svc.NextStatus, logger)
}

// PreviousStatusHandler creates a HandlerFunc that moves a request back
// to its previous status.
func PreviousStatusHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return requestAction("retreating status", svc.PreviousStatus, logger)
}

// UpdateWorkflowsHandler creates a HandlerFunc that synchronizes a
// request with its remote workflows.
func UpdateWorkflowsHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return requestAction("updating workflows", svc.UpdateWorkflows, logger)
}

// OptionResetHandler creates a HandlerFunc that reloads the subcampaign
// derived fields of a new request.
func OptionResetHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return requestAction("resetting options", svc.OptionReset, logger)
}

// ChangePriorityHandler creates a HandlerFunc that changes the priority
// of a submitted request, propagating it to the remote workflows.
func ChangePriorityHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		var body struct {
			Priority int `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		req, err := svc.ChangePriority(r.Context(), prepid, body.Priority)
		if err != nil {
			logger.Info(logkeys.Message, "changing priority", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(req); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// RequestRunsHandler creates a HandlerFunc that resolves the run list a
// request would process.
func RequestRunsHandler(svc RequestManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		runs, err := svc.RunsForRequest(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "resolving runs", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if runs == nil {
			runs = []int{}
		}
		jsonResp := &struct {
			Runs []int `json:"runs"`
		}{Runs: runs}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jsonResp); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

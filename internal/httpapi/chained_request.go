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

// ChainManager is the chained-request surface of the API. Chained
// requests are created by ticket expansion, so the API only reads and
// deletes them.
type ChainManager interface {
	Get(ctx context.Context, prepid string) (*models.ChainedRequest, error)
	List(ctx context.Context, limit int) ([]*models.ChainedRequest, error)
	Delete(ctx context.Context, prepid string) error
}

// GetChainedRequestHandler creates a HandlerFunc that fetches one
// chained request.
func GetChainedRequestHandler(svc ChainManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		chain, err := svc.Get(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "fetching chained request", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if chain == nil {
			JSONError(w, app.ErrNotFound, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(chain); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// ListChainedRequestsHandler creates a HandlerFunc that lists chained
// requests.
func ListChainedRequestsHandler(svc ChainManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		limit, err := listLimit(r)
		if err != nil {
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		chains, err := svc.List(r.Context(), limit)
		if err != nil {
			logger.Info(logkeys.Message, "listing chained requests", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if chains == nil {
			chains = []*models.ChainedRequest{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(chains); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// DeleteChainedRequestHandler creates a HandlerFunc that deletes a
// chained request together with its member requests.
func DeleteChainedRequestHandler(svc ChainManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		if err := svc.Delete(r.Context(), prepid); err != nil {
			logger.Info(logkeys.Message, "deleting chained request", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "deleted chained request", logkeys.PrepID, prepid)
		w.WriteHeader(http.StatusNoContent)
	}
}

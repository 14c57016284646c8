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

// SubcampaignManager is the subcampaign surface of the API.
type SubcampaignManager interface {
	Create(ctx context.Context, sub *models.Subcampaign) (*models.Subcampaign, error)
	Get(ctx context.Context, prepid string) (*models.Subcampaign, error)
	List(ctx context.Context, limit int) ([]*models.Subcampaign, error)
	Update(ctx context.Context, sub *models.Subcampaign) (*models.Subcampaign, error)
	Delete(ctx context.Context, prepid string) error
}

// CreateSubcampaignHandler creates a HandlerFunc that creates a subcampaign.
func CreateSubcampaignHandler(svc SubcampaignManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		var sub models.Subcampaign
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		created, err := svc.Create(r.Context(), &sub)
		if err != nil {
			logger.Info(logkeys.Message, "creating subcampaign", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "created subcampaign", logkeys.PrepID, created.PrepID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(created); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// GetSubcampaignHandler creates a HandlerFunc that fetches one subcampaign.
func GetSubcampaignHandler(svc SubcampaignManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		sub, err := svc.Get(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "fetching subcampaign", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if sub == nil {
			JSONError(w, app.ErrNotFound, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sub); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// ListSubcampaignsHandler creates a HandlerFunc that lists subcampaigns.
func ListSubcampaignsHandler(svc SubcampaignManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		limit, err := listLimit(r)
		if err != nil {
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		subs, err := svc.List(r.Context(), limit)
		if err != nil {
			logger.Info(logkeys.Message, "listing subcampaigns", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if subs == nil {
			subs = []*models.Subcampaign{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(subs); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// UpdateSubcampaignHandler creates a HandlerFunc that updates a subcampaign.
func UpdateSubcampaignHandler(svc SubcampaignManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		var sub models.Subcampaign
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		sub.PrepID = prepid
		updated, err := svc.Update(r.Context(), &sub)
		if err != nil {
			logger.Info(logkeys.Message, "updating subcampaign", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(updated); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// DeleteSubcampaignHandler creates a HandlerFunc that deletes a subcampaign.
func DeleteSubcampaignHandler(svc SubcampaignManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		if err := svc.Delete(r.Context(), prepid); err != nil {
			logger.Info(logkeys.Message, "deleting subcampaign", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "deleted subcampaign", logkeys.PrepID, prepid)
		w.WriteHeader(http.StatusNoContent)
	}
}

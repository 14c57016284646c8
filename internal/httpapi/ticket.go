package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	"github.com/example/reproc/internal/app"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
)

// ErrNoPattern is returned when a dataset search is attempted without a
// search pattern.
var ErrNoPattern = errors.New("no dataset pattern supplied")

// TicketManager is the ticket surface of the API.
type TicketManager interface {
	Create(ctx context.Context, t *models.Ticket) (*models.Ticket, error)
	Get(ctx context.Context, prepid string) (*models.Ticket, error)
	List(ctx context.Context, limit int) ([]*models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) (*models.Ticket, error)
	Delete(ctx context.Context, prepid string) error
	CreateRequests(ctx context.Context, prepid string) ([]models.CreatedChain, error)
	Datasets(ctx context.Context, pattern string) ([]string, error)
}

// CreateTicketHandler creates a HandlerFunc that creates a ticket.
func CreateTicketHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		var ticket models.Ticket
		if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		created, err := svc.Create(r.Context(), &ticket)
		if err != nil {
			logger.Info(logkeys.Message, "creating ticket", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "created ticket", logkeys.PrepID, created.PrepID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(created); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// GetTicketHandler creates a HandlerFunc that fetches one ticket.
func GetTicketHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		ticket, err := svc.Get(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "fetching ticket", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if ticket == nil {
			JSONError(w, app.ErrNotFound, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ticket); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// ListTicketsHandler creates a HandlerFunc that lists tickets.
func ListTicketsHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		limit, err := listLimit(r)
		if err != nil {
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		tickets, err := svc.List(r.Context(), limit)
		if err != nil {
			logger.Info(logkeys.Message, "listing tickets", logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if tickets == nil {
			tickets = []*models.Ticket{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tickets); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// UpdateTicketHandler creates a HandlerFunc that updates a ticket.
func UpdateTicketHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		var ticket models.Ticket
		if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			JSONError(w, err, http.StatusBadRequest)
			return
		}
		ticket.PrepID = prepid
		updated, err := svc.Update(r.Context(), &ticket)
		if err != nil {
			logger.Info(logkeys.Message, "updating ticket", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(updated); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// DeleteTicketHandler creates a HandlerFunc that deletes a ticket.
func DeleteTicketHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		if err := svc.Delete(r.Context(), prepid); err != nil {
			logger.Info(logkeys.Message, "deleting ticket", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "deleted ticket", logkeys.PrepID, prepid)
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateTicketRequestsHandler creates a HandlerFunc that expands a
// ticket into its chained requests.
func CreateTicketRequestsHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		prepid := flow.Param(r.Context(), "prepid")
		created, err := svc.CreateRequests(r.Context(), prepid)
		if err != nil {
			logger.Info(logkeys.Message, "creating requests", logkeys.PrepID, prepid, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		logger.Debug(logkeys.Message, "created requests", logkeys.PrepID, prepid, logkeys.GenericCount, len(created))
		jsonResp := &struct {
			CreatedRequests []models.CreatedChain `json:"created_requests"`
		}{CreatedRequests: created}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(jsonResp); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// DatasetSearchHandler creates a HandlerFunc that searches the dataset
// catalog for valid datasets matching a pattern.
func DatasetSearchHandler(svc TicketManager, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		pattern := r.URL.Query().Get("pattern")
		if pattern == "" {
			JSONError(w, ErrNoPattern, http.StatusBadRequest)
			return
		}
		datasets, err := svc.Datasets(r.Context(), pattern)
		if err != nil {
			logger.Info(logkeys.Message, "searching datasets", logkeys.Dataset, pattern, logkeys.Error, err)
			JSONError(w, err, statusFor(err))
			return
		}
		if datasets == nil {
			datasets = []string{}
		}
		jsonResp := &struct {
			Datasets []string `json:"datasets"`
		}{Datasets: datasets}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jsonResp); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

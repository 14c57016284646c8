package app

import (
	"context"
	"fmt"
	"time"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	corerequest "github.com/example/reproc/internal/core/request"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// chainCategory is the fixed first token of chained request identifiers.
const chainCategory = "Chain"

// CreateChainInput carries the attributes of a new chained request. Era,
// Dataset and ProcessingString come from the chain's first request and
// form the identifier prefix.
type CreateChainInput struct {
	Links            []models.ChainLink
	Era              string
	Dataset          string
	ProcessingString string
}

// ChainedRequestService manages the chained requests tickets expand
// into. Deleting a chain cascades to its member requests, which makes it
// the rollback unit of ticket expansion.
type ChainedRequestService struct {
	lifecycle *Lifecycle[*models.ChainedRequest]
	store     secondary.EntityStore
	requests  *RequestService
	locks     *locker.Locker
	logger    log.Logger
	now       func() time.Time
}

func NewChainedRequestService(
	opener secondary.StoreOpener,
	requests *RequestService,
	locks *locker.Locker,
	logger log.Logger,
) (*ChainedRequestService, error) {
	store, err := opener.Open("chained_requests")
	if err != nil {
		return nil, fmt.Errorf("opening chained request store: %w", err)
	}
	s := &ChainedRequestService{
		store:    store,
		requests: requests,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
	s.lifecycle = NewLifecycle("chained_request", store, locks, s, func() *models.ChainedRequest {
		return &models.ChainedRequest{}
	}, logger)
	return s, nil
}

// Create assigns the next serial identifier for the chain's prefix and
// persists a chained request referencing the given member requests.
func (s *ChainedRequestService) Create(ctx context.Context, input CreateChainInput) (*models.ChainedRequest, error) {
	if input.Era == "" || input.Dataset == "" || input.ProcessingString == "" {
		return nil, fmt.Errorf("chained request needs era, dataset and processing string: %w", ErrValidationFailed)
	}
	prefix := fmt.Sprintf("%s-%s-%s-%s", chainCategory, input.Era, input.Dataset, input.ProcessingString)

	release := s.locks.Acquire("create-chained-request-" + prefix)
	defer release()

	serial, err := s.highestSerial(ctx, prefix)
	if err != nil {
		return nil, err
	}
	chain := &models.ChainedRequest{
		Requests: append([]models.ChainLink(nil), input.Links...),
	}
	chain.PrepID = corerequest.GenerateID(prefix, serial+1)
	return s.lifecycle.Create(ctx, chain)
}

func (s *ChainedRequestService) highestSerial(ctx context.Context, prefix string) (int, error) {
	docs, err := s.store.Query(ctx, secondary.Query{
		Field: "prepid",
		Value: prefix + "-*",
		Limit: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("querying serials for %s: %w", prefix, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	prepid, _ := docs[0]["prepid"].(string)
	serial := corerequest.ParseSerial(prepid)
	if serial < 0 {
		return 0, nil
	}
	return serial, nil
}

func (s *ChainedRequestService) Get(ctx context.Context, prepid string) (*models.ChainedRequest, error) {
	return s.lifecycle.Get(ctx, prepid)
}

func (s *ChainedRequestService) List(ctx context.Context, limit int) ([]*models.ChainedRequest, error) {
	docs, err := s.store.Query(ctx, secondary.Query{Field: "prepid", Value: "*", Limit: limit, SortAsc: true})
	if err != nil {
		return nil, fmt.Errorf("querying chained requests: %w", err)
	}
	chains := make([]*models.ChainedRequest, 0, len(docs))
	for _, doc := range docs {
		chain := &models.ChainedRequest{}
		if err := documentInto(doc, chain); err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

// Delete removes a chained request together with its member requests,
// in reverse chain order so dependent requests go before their inputs.
// Member deletions are best effort: a request that is already gone or
// advanced past new is logged and skipped.
func (s *ChainedRequestService) Delete(ctx context.Context, prepid string) error {
	chain, err := s.Get(ctx, prepid)
	if err != nil {
		return err
	}
	if chain == nil {
		return fmt.Errorf("chained request %s: %w", prepid, ErrNotFound)
	}

	logger := ctxlog.Logger(ctx, s.logger)
	for i := len(chain.Requests) - 1; i >= 0; i-- {
		requestID := chain.Requests[i].Request
		if err := s.requests.Delete(ctx, requestID); err != nil {
			logger.Info(
				logkeys.Message, "could not delete chain member",
				logkeys.PrepID, requestID,
				logkeys.Error, err,
			)
		}
	}
	return s.lifecycle.Delete(ctx, prepid)
}

// ValidateCreate implements Hooks.
func (s *ChainedRequestService) ValidateCreate(ctx context.Context, chain *models.ChainedRequest) error {
	if len(chain.Requests) == 0 {
		return fmt.Errorf("chained request %s has no requests", chain.PrepID)
	}
	for i, link := range chain.Requests {
		if link.Request == "" {
			return fmt.Errorf("chained request %s has an empty link at position %d", chain.PrepID, i)
		}
		if i > 0 && link.JoinType == "" {
			return fmt.Errorf("chained request %s is missing the join type at position %d", chain.PrepID, i)
		}
	}
	return nil
}

// ValidateUpdate implements Hooks.
func (s *ChainedRequestService) ValidateUpdate(ctx context.Context, old, updated *models.ChainedRequest, changed []string) error {
	return nil
}

// ValidateDelete implements Hooks. The member cascade already ran.
func (s *ChainedRequestService) ValidateDelete(ctx context.Context, chain *models.ChainedRequest) error {
	return nil
}

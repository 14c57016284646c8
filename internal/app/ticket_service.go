package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	corerequest "github.com/example/reproc/internal/core/request"
	coreticket "github.com/example/reproc/internal/core/ticket"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// TicketService manages tickets and their expansion into chained
// requests.
type TicketService struct {
	lifecycle    *Lifecycle[*models.Ticket]
	store        secondary.EntityStore
	requests     *RequestService
	chains       *ChainedRequestService
	subcampaigns *SubcampaignService
	catalog      secondary.DatasetCatalog
	locks        *locker.Locker
	blacklist    []string
	logger       log.Logger
	now          func() time.Time
}

func NewTicketService(
	opener secondary.StoreOpener,
	requests *RequestService,
	chains *ChainedRequestService,
	subcampaigns *SubcampaignService,
	catalog secondary.DatasetCatalog,
	locks *locker.Locker,
	blacklist []string,
	logger log.Logger,
) (*TicketService, error) {
	store, err := opener.Open("tickets")
	if err != nil {
		return nil, fmt.Errorf("opening ticket store: %w", err)
	}
	s := &TicketService{
		store:        store,
		requests:     requests,
		chains:       chains,
		subcampaigns: subcampaigns,
		catalog:      catalog,
		locks:        locks,
		blacklist:    blacklist,
		logger:       logger,
		now:          time.Now,
	}
	s.lifecycle = NewLifecycle("ticket", store, locks, s, func() *models.Ticket {
		return &models.Ticket{}
	}, logger)
	return s, nil
}

// Create assigns the next serial identifier derived from the first step
// and persists a new ticket in status new.
func (s *TicketService) Create(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	if err := coreticket.ValidateSteps(t.Steps).Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	t.Status = coreticket.StatusNew
	t.CreatedRequests = nil

	prefix := coreticket.IDPrefix(t.Steps[0].Subcampaign, t.Steps[0].ProcessingString)
	release := s.locks.Acquire("create-ticket-" + prefix)
	defer release()

	serial, err := s.highestSerial(ctx, prefix)
	if err != nil {
		return nil, err
	}
	t.PrepID = coreticket.GenerateID(prefix, serial+1)
	return s.lifecycle.Create(ctx, t)
}

func (s *TicketService) highestSerial(ctx context.Context, prefix string) (int, error) {
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

func (s *TicketService) Get(ctx context.Context, prepid string) (*models.Ticket, error) {
	return s.lifecycle.Get(ctx, prepid)
}

func (s *TicketService) List(ctx context.Context, limit int) ([]*models.Ticket, error) {
	docs, err := s.store.Query(ctx, secondary.Query{Field: "prepid", Value: "*", Limit: limit, SortAsc: true})
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	tickets := make([]*models.Ticket, 0, len(docs))
	for _, doc := range docs {
		t := &models.Ticket{}
		if err := documentInto(doc, t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *TicketService) Update(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	return s.lifecycle.Update(ctx, t)
}

func (s *TicketService) Delete(ctx context.Context, prepid string) error {
	return s.lifecycle.Delete(ctx, prepid)
}

// CreateRequests expands the ticket into one chained request per input
// dataset. The expansion is all or nothing: when any chain fails, every
// chain already created for this ticket is deleted before the failure
// propagates. On success the ticket records the created chains and
// moves to done in a single write.
func (s *TicketService) CreateRequests(ctx context.Context, prepid string) ([]models.CreatedChain, error) {
	release := s.locks.Acquire(prepid)
	defer release()

	t, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("ticket %s: %w", prepid, ErrNotFound)
	}
	if err := coreticket.CanCreateRequests(prepid, t.Status, len(t.CreatedRequests)).Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if dataset, ok := coreticket.BlacklistedDataset(t.InputDatasets, s.blacklist); ok {
		return nil, fmt.Errorf("input dataset %s is blacklisted: %w", dataset, ErrValidationFailed)
	}
	if len(t.InputDatasets) == 0 {
		return nil, fmt.Errorf("ticket %s has no input datasets: %w", prepid, ErrValidationFailed)
	}

	logger := ctxlog.Logger(ctx, s.logger)
	var created []*models.ChainedRequest
	for _, inputDataset := range t.InputDatasets {
		chain, err := s.createChain(ctx, t, inputDataset)
		if err != nil {
			s.rollbackChains(ctx, created)
			return nil, fmt.Errorf("expanding ticket %s for %s: %w", prepid, inputDataset, err)
		}
		created = append(created, chain)
	}

	groups := make([]models.CreatedChain, len(created))
	for i, chain := range created {
		groups[i] = models.CreatedChain{
			ChainedRequest: chain.PrepID,
			Requests:       chain.RequestIDs(),
		}
	}
	t.CreatedRequests = groups
	t.Status = coreticket.StatusDone
	t.AddHistory("create_requests", groups, s.now().Unix())
	if err := s.lifecycle.save(ctx, t); err != nil {
		return nil, err
	}
	logger.Info(
		logkeys.Message, "ticket expanded",
		logkeys.PrepID, prepid,
		logkeys.GenericCount, len(groups),
	)
	return groups, nil
}

// createChain creates the requests of all steps for one input dataset
// and links them into a chained request. Any failure deletes the
// requests created so far, newest first.
func (s *TicketService) createChain(ctx context.Context, t *models.Ticket, inputDataset string) (*models.ChainedRequest, error) {
	logger := ctxlog.Logger(ctx, s.logger)

	var created []*models.Request
	var links []models.ChainLink
	var dataset, era string
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			if err := s.requests.Delete(ctx, created[i].PrepID); err != nil {
				logger.Info(
					logkeys.Message, "rollback could not delete request",
					logkeys.PrepID, created[i].PrepID,
					logkeys.Error, err,
				)
			}
		}
	}

	for i, step := range t.Steps {
		input := CreateRequestInput{
			Subcampaign:      step.Subcampaign,
			ProcessingString: step.ProcessingString,
			TimePerEvent:     step.TimePerEvent,
			SizePerEvent:     step.SizePerEvent,
			Priority:         step.Priority,
		}
		if i == 0 {
			input.InputDataset = inputDataset
		} else {
			input.Dataset = dataset
			input.Era = era
		}
		// Run resolution is best effort here; a request without runs
		// simply cannot be approved until runs are set.
		runs, err := s.requests.Runs(ctx, step.Subcampaign, inputDataset)
		if err != nil {
			logger.Info(
				logkeys.Message, "could not resolve runs",
				logkeys.Dataset, inputDataset,
				logkeys.Error, err,
			)
		} else {
			input.Runs = runs
		}

		req, err := s.requests.Create(ctx, input)
		if err != nil {
			rollback()
			return nil, err
		}
		created = append(created, req)
		links = append(links, models.ChainLink{Request: req.PrepID, JoinType: step.JoinType})
		if i == 0 {
			dataset, era = req.Dataset(), req.Era()
		}
	}

	chain, err := s.chains.Create(ctx, CreateChainInput{
		Links:            links,
		Era:              era,
		Dataset:          dataset,
		ProcessingString: t.Steps[0].ProcessingString,
	})
	if err != nil {
		rollback()
		return nil, err
	}
	return chain, nil
}

// rollbackChains deletes already created chains after a later chain
// failed. Deletion cascades to the member requests.
func (s *TicketService) rollbackChains(ctx context.Context, chains []*models.ChainedRequest) {
	logger := ctxlog.Logger(ctx, s.logger)
	for i := len(chains) - 1; i >= 0; i-- {
		if err := s.chains.Delete(ctx, chains[i].PrepID); err != nil {
			logger.Info(
				logkeys.Message, "rollback could not delete chained request",
				logkeys.PrepID, chains[i].PrepID,
				logkeys.Error, err,
			)
		}
	}
}

// Datasets lists catalog datasets matching a pattern, keeping only
// usable ones: valid or production access and not blacklisted.
func (s *TicketService) Datasets(ctx context.Context, pattern string) ([]string, error) {
	release := s.locks.Acquire("get-ticket-datasets")
	defer release()

	found, err := s.catalog.Datasets(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("querying datasets for %q: %w: %v", pattern, ErrRemoteFailure, err)
	}
	blacklisted := make(map[string]bool, len(s.blacklist))
	for _, dataset := range s.blacklist {
		blacklisted[dataset] = true
	}
	datasets := make([]string, 0, len(found))
	for _, d := range found {
		access := strings.ToUpper(d.AccessType)
		if access != "VALID" && access != "PRODUCTION" {
			continue
		}
		if blacklisted[models.PrimaryDataset(d.Name)] {
			continue
		}
		datasets = append(datasets, d.Name)
	}
	return datasets, nil
}

// ValidateCreate implements Hooks.
func (s *TicketService) ValidateCreate(ctx context.Context, t *models.Ticket) error {
	if err := s.validateSteps(ctx, t); err != nil {
		return err
	}
	if dataset, ok := coreticket.BlacklistedDataset(t.InputDatasets, s.blacklist); ok {
		return fmt.Errorf("input dataset %s is blacklisted", dataset)
	}
	return nil
}

// ValidateUpdate implements Hooks. Expansion results and status are
// managed by CreateRequests, not by plain updates.
func (s *TicketService) ValidateUpdate(ctx context.Context, old, updated *models.Ticket, changed []string) error {
	stepsChanged, datasetsChanged := false, false
	for _, path := range changed {
		switch {
		case path == "status" || strings.HasPrefix(path, "created_requests"):
			return fmt.Errorf("%s of %s cannot change through an update", path, old.PrepID)
		case strings.HasPrefix(path, "steps"):
			stepsChanged = true
		case strings.HasPrefix(path, "input_datasets"):
			datasetsChanged = true
		}
	}
	if len(old.CreatedRequests) > 0 && (stepsChanged || datasetsChanged) {
		return fmt.Errorf("ticket %s already created requests", old.PrepID)
	}
	if stepsChanged {
		if err := s.validateSteps(ctx, updated); err != nil {
			return err
		}
	}
	if datasetsChanged {
		if dataset, ok := coreticket.BlacklistedDataset(updated.InputDatasets, s.blacklist); ok {
			return fmt.Errorf("input dataset %s is blacklisted", dataset)
		}
	}
	return nil
}

// ValidateDelete implements Hooks.
func (s *TicketService) ValidateDelete(ctx context.Context, t *models.Ticket) error {
	return coreticket.CanDelete(t.PrepID, len(t.CreatedRequests)).Error()
}

func (s *TicketService) validateSteps(ctx context.Context, t *models.Ticket) error {
	if err := coreticket.ValidateSteps(t.Steps).Error(); err != nil {
		return err
	}
	for _, step := range t.Steps {
		sub, err := s.subcampaigns.Get(ctx, step.Subcampaign)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("subcampaign %s does not exist", step.Subcampaign)
		}
	}
	return nil
}

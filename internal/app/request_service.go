package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	corerequest "github.com/example/reproc/internal/core/request"
	coreruns "github.com/example/reproc/internal/core/runs"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/logkeys"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// DefaultPriority is assigned to requests created without an explicit
// priority.
const DefaultPriority = 110000

// Enqueuer hands approved requests to the background submitter.
type Enqueuer interface {
	// Enqueue schedules a request for submission. It reports false when
	// the queue is full.
	Enqueue(prepid string) bool
}

// CreateRequestInput carries the caller-supplied attributes of a new
// request. Either InputDataset or the Dataset/Era pair must be set; the
// latter is used for chained steps whose input dataset is not known yet.
type CreateRequestInput struct {
	Subcampaign      string            `json:"subcampaign"`
	ProcessingString string            `json:"processing_string"`
	InputDataset     string            `json:"input_dataset"`
	Dataset          string            `json:"dataset"`
	Era              string            `json:"era"`
	Priority         int               `json:"priority"`
	TimePerEvent     float64           `json:"time_per_event"`
	SizePerEvent     float64           `json:"size_per_event"`
	Runs             []int             `json:"runs"`
	Sequences        []models.Sequence `json:"sequences"`
	Memory           int               `json:"memory"`
	Energy           float64           `json:"energy"`
}

// RequestService drives requests through their lifecycle and state
// machine, keeping the local workflow view in sync with the remote
// services.
type RequestService struct {
	lifecycle     *Lifecycle[*models.Request]
	store         secondary.EntityStore
	tickets       secondary.EntityStore
	chains        secondary.EntityStore
	subcampaigns  *SubcampaignService
	workflows     secondary.WorkflowManager
	stats         secondary.StatsClient
	catalog       secondary.DatasetCatalog
	certification secondary.CertificationClient
	locks         *locker.Locker
	submitter     Enqueuer
	logger        log.Logger
	now           func() time.Time
}

func NewRequestService(
	opener secondary.StoreOpener,
	subcampaigns *SubcampaignService,
	workflows secondary.WorkflowManager,
	stats secondary.StatsClient,
	catalog secondary.DatasetCatalog,
	certification secondary.CertificationClient,
	locks *locker.Locker,
	logger log.Logger,
) (*RequestService, error) {
	store, err := opener.Open("requests")
	if err != nil {
		return nil, fmt.Errorf("opening request store: %w", err)
	}
	tickets, err := opener.Open("tickets")
	if err != nil {
		return nil, fmt.Errorf("opening ticket store: %w", err)
	}
	chains, err := opener.Open("chained_requests")
	if err != nil {
		return nil, fmt.Errorf("opening chained request store: %w", err)
	}
	s := &RequestService{
		store:         store,
		tickets:       tickets,
		chains:        chains,
		subcampaigns:  subcampaigns,
		workflows:     workflows,
		stats:         stats,
		catalog:       catalog,
		certification: certification,
		locks:         locks,
		logger:        logger,
		now:           time.Now,
	}
	s.lifecycle = NewLifecycle("request", store, locks, s, func() *models.Request {
		return &models.Request{}
	}, logger)
	return s, nil
}

// SetSubmitter wires the background submitter. The submitter is built
// after the service because it calls back into it.
func (s *RequestService) SetSubmitter(e Enqueuer) {
	s.submitter = e
}

// Create builds a request seeded from its subcampaign, assigns the next
// serial identifier for its prefix and persists it.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*models.Request, error) {
	sub, err := s.subcampaigns.Get(ctx, input.Subcampaign)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subcampaign %s: %w", input.Subcampaign, ErrNotFound)
	}

	dataset, era := input.Dataset, input.Era
	if input.InputDataset != "" {
		var ok bool
		dataset, era, ok = models.ParseInputDataset(input.InputDataset)
		if !ok {
			return nil, fmt.Errorf("malformed input dataset %q: %w", input.InputDataset, ErrValidationFailed)
		}
	}
	if dataset == "" || era == "" {
		return nil, fmt.Errorf("cannot derive dataset and era for the identifier: %w", ErrValidationFailed)
	}

	req := &models.Request{
		Status:           string(corerequest.InitialStatus()),
		Subcampaign:      sub.PrepID,
		InputDataset:     input.InputDataset,
		ProcessingString: input.ProcessingString,
		Runs:             input.Runs,
		Priority:         input.Priority,
		Memory:           input.Memory,
		Energy:           input.Energy,
		Release:          sub.Release,
		TimePerEvent:     input.TimePerEvent,
		SizePerEvent:     input.SizePerEvent,
	}
	req.Sequences = append([]models.Sequence(nil), input.Sequences...)
	if len(req.Sequences) == 0 {
		req.Sequences = append([]models.Sequence(nil), sub.Sequences...)
	}
	if req.Priority == 0 {
		req.Priority = DefaultPriority
	}
	if req.Memory == 0 {
		req.Memory = sub.Memory
	}
	if req.Energy == 0 {
		req.Energy = sub.Energy
	}

	prefix := corerequest.IDPrefix(era, dataset, input.ProcessingString)
	release := s.locks.Acquire("create-request-" + prefix)
	defer release()

	serial, err := s.highestSerial(ctx, prefix)
	if err != nil {
		return nil, err
	}
	req.PrepID = corerequest.GenerateID(prefix, serial+1)
	return s.lifecycle.Create(ctx, req)
}

// highestSerial returns the largest serial already used under prefix,
// or 0 when the prefix is new.
func (s *RequestService) highestSerial(ctx context.Context, prefix string) (int, error) {
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

// Get loads a request, returning nil when it does not exist.
func (s *RequestService) Get(ctx context.Context, prepid string) (*models.Request, error) {
	return s.lifecycle.Get(ctx, prepid)
}

// List returns up to limit requests ordered by identifier.
func (s *RequestService) List(ctx context.Context, limit int) ([]*models.Request, error) {
	return s.query(ctx, secondary.Query{Field: "prepid", Value: "*", Limit: limit, SortAsc: true})
}

// ListByTicket returns the requests created from the given ticket.
func (s *RequestService) ListByTicket(ctx context.Context, ticketID string) ([]*models.Request, error) {
	ticketDoc, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}
	if ticketDoc == nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}
	ticket := &models.Ticket{}
	if err := documentInto(ticketDoc, ticket); err != nil {
		return nil, err
	}
	var requests []*models.Request
	for _, chain := range ticket.CreatedRequests {
		for _, prepid := range chain.Requests {
			req, err := s.Get(ctx, prepid)
			if err != nil {
				return nil, err
			}
			if req != nil {
				requests = append(requests, req)
			}
		}
	}
	return requests, nil
}

func (s *RequestService) query(ctx context.Context, q secondary.Query) ([]*models.Request, error) {
	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	requests := make([]*models.Request, 0, len(docs))
	for _, doc := range docs {
		req := &models.Request{}
		if err := documentInto(doc, req); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Update persists edits to a request. Editing a submitted request's
// priority propagates the change to the active remote workflows first.
func (s *RequestService) Update(ctx context.Context, req *models.Request) (*models.Request, error) {
	old, err := s.Get(ctx, req.PrepID)
	if err != nil {
		return nil, err
	}
	if old != nil && old.Status == string(corerequest.StatusSubmitted) && old.Priority != req.Priority {
		if _, err := s.ChangePriority(ctx, req.PrepID, req.Priority); err != nil {
			return nil, err
		}
	}
	return s.lifecycle.Update(ctx, req)
}

// Delete removes a request in status new and detaches it from the
// tickets and chained requests that reference it.
func (s *RequestService) Delete(ctx context.Context, prepid string) error {
	req, err := s.Get(ctx, prepid)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	if err := corerequest.CanDelete(prepid, corerequest.Status(req.Status)).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := s.detachFromTickets(ctx, prepid); err != nil {
		return err
	}
	if err := s.detachFromChains(ctx, prepid); err != nil {
		return err
	}
	return s.lifecycle.Delete(ctx, prepid)
}

func (s *RequestService) detachFromTickets(ctx context.Context, prepid string) error {
	docs, err := s.tickets.Query(ctx, secondary.Query{Field: "created_requests", Value: prepid})
	if err != nil {
		return fmt.Errorf("querying tickets referencing %s: %w", prepid, err)
	}
	for _, doc := range docs {
		ticketID, _ := doc["prepid"].(string)
		if err := s.detachFromTicket(ctx, ticketID, prepid); err != nil {
			return err
		}
	}
	return nil
}

func (s *RequestService) detachFromTicket(ctx context.Context, ticketID, prepid string) error {
	release := s.locks.Acquire(ticketID)
	defer release()

	doc, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}
	if doc == nil {
		return nil
	}
	ticket := &models.Ticket{}
	if err := documentInto(doc, ticket); err != nil {
		return err
	}
	changed := false
	for i := range ticket.CreatedRequests {
		kept := ticket.CreatedRequests[i].Requests[:0]
		for _, id := range ticket.CreatedRequests[i].Requests {
			if id == prepid {
				changed = true
				continue
			}
			kept = append(kept, id)
		}
		ticket.CreatedRequests[i].Requests = kept
	}
	if !changed {
		return nil
	}
	ticket.AddHistory("remove_request", prepid, s.now().Unix())
	return saveEntity(ctx, s.tickets, ticket)
}

func (s *RequestService) detachFromChains(ctx context.Context, prepid string) error {
	docs, err := s.chains.Query(ctx, secondary.Query{Field: "requests", Value: prepid})
	if err != nil {
		return fmt.Errorf("querying chained requests referencing %s: %w", prepid, err)
	}
	for _, doc := range docs {
		chainID, _ := doc["prepid"].(string)
		if err := s.detachFromChain(ctx, chainID, prepid); err != nil {
			return err
		}
	}
	return nil
}

func (s *RequestService) detachFromChain(ctx context.Context, chainID, prepid string) error {
	release := s.locks.Acquire(chainID)
	defer release()

	doc, err := s.chains.Get(ctx, chainID)
	if err != nil {
		return fmt.Errorf("loading chained request %s: %w", chainID, err)
	}
	if doc == nil {
		return nil
	}
	chain := &models.ChainedRequest{}
	if err := documentInto(doc, chain); err != nil {
		return err
	}
	kept := chain.Requests[:0]
	changed := false
	for _, link := range chain.Requests {
		if link.Request == prepid {
			changed = true
			continue
		}
		kept = append(kept, link)
	}
	if !changed {
		return nil
	}
	chain.Requests = kept
	chain.AddHistory("remove_request", prepid, s.now().Unix())
	return saveEntity(ctx, s.chains, chain)
}

// NextStatus advances a request one step along the state machine. The
// operation fails fast with ErrBusy when another transition on the same
// request is in flight.
func (s *RequestService) NextStatus(ctx context.Context, prepid string) (*models.Request, error) {
	unlock, err := s.locks.TryAcquire(prepid)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", prepid, err)
	}
	defer unlock()

	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}

	switch corerequest.Status(req.Status) {
	case corerequest.StatusNew:
		if err := corerequest.CanApprove(prepid, req.Runs).Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return req, s.saveStatus(ctx, req, corerequest.StatusApproved, s.now().Unix())
	case corerequest.StatusApproved:
		return req, s.scheduleSubmission(ctx, req)
	case corerequest.StatusSubmitted:
		return s.moveToDone(ctx, req)
	default:
		return nil, fmt.Errorf("request %s cannot advance from status %s: %w", prepid, req.Status, ErrInvalidTransition)
	}
}

func (s *RequestService) scheduleSubmission(ctx context.Context, req *models.Request) error {
	if s.submitter == nil {
		return fmt.Errorf("request %s: submission is not configured: %w", req.PrepID, ErrInvalidTransition)
	}
	if err := s.saveStatus(ctx, req, corerequest.StatusSubmitting, s.now().Unix()); err != nil {
		return err
	}
	if !s.submitter.Enqueue(req.PrepID) {
		// Roll the status back so the request can be advanced again
		// once the queue drains.
		if err := s.saveStatus(ctx, req, corerequest.StatusApproved, s.now().Unix()); err != nil {
			return err
		}
		return fmt.Errorf("request %s: submission queue is full: %w", req.PrepID, ErrBusy)
	}
	return nil
}

func (s *RequestService) moveToDone(ctx context.Context, req *models.Request) (*models.Request, error) {
	req, err := s.updateWorkflowsLocked(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(req.Workflows) == 0 {
		return nil, fmt.Errorf("request %s does not have any workflows: %w", req.PrepID, ErrInvalidTransition)
	}
	last := req.Workflows[len(req.Workflows)-1]
	completedAt, guard := corerequest.CompletionOf(req.PrepID, last)
	if err := guard.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return req, s.saveStatus(ctx, req, corerequest.StatusDone, completedAt)
}

// PreviousStatus moves a request one step backwards. Retreating from
// submitting or submitted rejects the active remote workflows and resets
// the submission output before landing on approved.
func (s *RequestService) PreviousStatus(ctx context.Context, prepid string) (*models.Request, error) {
	unlock, err := s.locks.TryAcquire(prepid)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", prepid, err)
	}
	defer unlock()

	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}

	switch corerequest.Status(req.Status) {
	case corerequest.StatusApproved:
		return req, s.saveStatus(ctx, req, corerequest.StatusNew, s.now().Unix())
	case corerequest.StatusSubmitting, corerequest.StatusSubmitted:
		return s.retreatToApproved(ctx, req)
	default:
		return nil, fmt.Errorf("request %s cannot retreat from status %s: %w", prepid, req.Status, ErrInvalidTransition)
	}
}

func (s *RequestService) retreatToApproved(ctx context.Context, req *models.Request) (*models.Request, error) {
	logger := ctxlog.Logger(ctx, s.logger)

	active := corerequest.ActiveWorkflows(req.Workflows)
	if len(active) > 0 {
		if err := s.forceStatsRefresh(ctx, corerequest.WorkflowNames(active)); err != nil {
			return nil, err
		}
	}
	req, err := s.updateWorkflowsLocked(ctx, req)
	if err != nil {
		return nil, err
	}
	active = corerequest.ActiveWorkflows(req.Workflows)
	for _, w := range active {
		logger.Info(
			logkeys.Message, "rejecting workflow",
			logkeys.PrepID, req.PrepID,
			logkeys.WorkflowName, w.Name,
		)
		if err := s.workflows.Reject(ctx, w.Name); err != nil {
			return nil, fmt.Errorf("rejecting workflow %s: %w: %v", w.Name, ErrRemoteFailure, err)
		}
	}
	if len(active) > 0 {
		if err := s.forceStatsRefresh(ctx, corerequest.WorkflowNames(active)); err != nil {
			return nil, err
		}
	}

	req.Workflows = nil
	req.OutputDatasets = nil
	req.TotalEvents = 0
	req.CompletedEvents = 0
	for i := range req.Sequences {
		req.Sequences[i].ConfigID = ""
		req.Sequences[i].HarvestingConfigID = ""
	}
	return req, s.saveStatus(ctx, req, corerequest.StatusApproved, s.now().Unix())
}

// saveStatus records a status transition and persists the request.
// Callers hold the request lock.
func (s *RequestService) saveStatus(ctx context.Context, req *models.Request, status corerequest.Status, at int64) error {
	req.Status = string(status)
	req.AddHistory("status", string(status), at)
	if err := s.lifecycle.save(ctx, req); err != nil {
		return err
	}
	ctxlog.Logger(ctx, s.logger).Info(
		logkeys.Message, "status changed",
		logkeys.PrepID, req.PrepID,
		logkeys.Status, string(status),
	)
	return nil
}

// UpdateWorkflows re-synchronizes the request's workflow view with the
// statistics service.
func (s *RequestService) UpdateWorkflows(ctx context.Context, prepid string) (*models.Request, error) {
	release := s.locks.Acquire(prepid)
	defer release()

	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	return s.updateWorkflowsLocked(ctx, req)
}

// updateWorkflowsLocked fetches the remote workflow details, rebuilds
// the local view and persists it. Callers hold the request lock.
func (s *RequestService) updateWorkflowsLocked(ctx context.Context, req *models.Request) (*models.Request, error) {
	names, err := s.stats.WorkflowNames(ctx, req.PrepID)
	if err != nil {
		return nil, fmt.Errorf("listing workflows of %s: %w: %v", req.PrepID, ErrRemoteFailure, err)
	}
	names = append(names, corerequest.WorkflowNames(req.Workflows)...)
	seen := make(map[string]bool, len(names))
	unique := names[:0]
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		unique = append(unique, name)
	}
	sort.Strings(unique)

	remote := make([]corerequest.RemoteWorkflow, 0, len(unique))
	for _, name := range unique {
		detail, err := s.stats.Workflow(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetching workflow %s: %w: %v", name, ErrRemoteFailure, err)
		}
		if detail == nil {
			return nil, fmt.Errorf("workflow %s is unknown to the statistics service: %w", name, ErrRemoteFailure)
		}
		remote = append(remote, *detail)
	}

	result := corerequest.Synchronize(req.Sequences, remote)
	req.Workflows = result.Workflows
	req.OutputDatasets = result.OutputDatasets
	if result.HasCompletedEvents {
		req.CompletedEvents = result.CompletedEvents
	}
	if result.HasPriority {
		req.Priority = result.Priority
	}
	if result.HasTotalEvents {
		req.TotalEvents = result.TotalEvents
	}
	req.AddHistory("update_workflows", corerequest.WorkflowNames(req.Workflows), s.now().Unix())
	if err := s.lifecycle.save(ctx, req); err != nil {
		return nil, err
	}
	ctxlog.Logger(ctx, s.logger).Info(
		logkeys.Message, "workflows updated",
		logkeys.PrepID, req.PrepID,
		logkeys.GenericCount, len(req.Workflows),
	)
	return req, nil
}

// forceStatsRefresh asks the statistics service to re-pull the named
// workflows. Refreshes are serialized globally to avoid hammering the
// service.
func (s *RequestService) forceStatsRefresh(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	release := s.locks.Acquire("refresh-stats")
	defer release()

	if err := s.stats.ForceRefresh(ctx, names); err != nil {
		return fmt.Errorf("refreshing workflow stats: %w: %v", ErrRemoteFailure, err)
	}
	return nil
}

// ChangePriority sets the priority of a submitted request and propagates
// it to the active remote workflows.
func (s *RequestService) ChangePriority(ctx context.Context, prepid string, priority int) (*models.Request, error) {
	unlock, err := s.locks.TryAcquire(prepid)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", prepid, err)
	}
	defer unlock()

	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	if corerequest.Status(req.Status) != corerequest.StatusSubmitted {
		return nil, fmt.Errorf("priority of %s can only change in status submitted, not %s: %w", prepid, req.Status, ErrInvalidTransition)
	}

	active := corerequest.ActiveWorkflows(req.Workflows)
	for _, w := range active {
		if err := s.workflows.SetPriority(ctx, w.Name, priority); err != nil {
			return nil, fmt.Errorf("setting priority of workflow %s: %w: %v", w.Name, ErrRemoteFailure, err)
		}
	}
	if err := s.forceStatsRefresh(ctx, corerequest.WorkflowNames(active)); err != nil {
		return nil, err
	}

	req.Priority = priority
	req.AddHistory("priority", priority, s.now().Unix())
	if err := s.lifecycle.save(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// OptionReset re-seeds an unsubmitted request from its subcampaign,
// discarding local edits to sequences, memory and energy.
func (s *RequestService) OptionReset(ctx context.Context, prepid string) (*models.Request, error) {
	unlock, err := s.locks.TryAcquire(prepid)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", prepid, err)
	}
	defer unlock()

	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	if corerequest.Status(req.Status) != corerequest.StatusNew {
		return nil, fmt.Errorf("options of %s can only reset in status new, not %s: %w", prepid, req.Status, ErrInvalidTransition)
	}
	sub, err := s.subcampaigns.Get(ctx, req.Subcampaign)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subcampaign %s: %w", req.Subcampaign, ErrNotFound)
	}

	req.Sequences = append([]models.Sequence(nil), sub.Sequences...)
	req.Memory = sub.Memory
	req.Energy = sub.Energy
	req.AddHistory("option_reset", nil, s.now().Unix())
	if err := s.lifecycle.save(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Runs resolves the run list for an input dataset under a subcampaign:
// the intersection of catalog runs and certified runs, or their union
// when one side is empty.
func (s *RequestService) Runs(ctx context.Context, subcampaign, inputDataset string) ([]int, error) {
	sub, err := s.subcampaigns.Get(ctx, subcampaign)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subcampaign %s: %w", subcampaign, ErrNotFound)
	}

	release := s.locks.Acquire("get-request-runs")
	defer release()

	var catalogRuns, certifiedRuns []int
	if inputDataset != "" {
		catalogRuns, err = s.catalog.Runs(ctx, inputDataset)
		if err != nil {
			return nil, fmt.Errorf("fetching runs of %s: %w: %v", inputDataset, ErrRemoteFailure, err)
		}
	}
	if sub.RunsJSONPath != "" {
		certifiedRuns, err = s.certification.CertifiedRuns(ctx, sub.RunsJSONPath)
		if err != nil {
			return nil, fmt.Errorf("fetching certified runs from %s: %w: %v", sub.RunsJSONPath, ErrRemoteFailure, err)
		}
	}

	combined := coreruns.Combine(catalogRuns, certifiedRuns)
	ctxlog.Logger(ctx, s.logger).Debug(
		logkeys.Message, "resolved runs",
		logkeys.Dataset, inputDataset,
		logkeys.GenericCount, len(combined),
	)
	return combined, nil
}

// RunsForRequest resolves the run list for an existing request.
func (s *RequestService) RunsForRequest(ctx context.Context, prepid string) ([]int, error) {
	req, err := s.Get(ctx, prepid)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	return s.Runs(ctx, req.Subcampaign, req.InputDataset)
}

// submitQueued performs one submission picked off the submitter queue.
// A failure parks the request back on approved with the reason recorded.
func (s *RequestService) submitQueued(ctx context.Context, prepid string) error {
	release := s.locks.Acquire(prepid)
	defer release()

	logger := ctxlog.Logger(ctx, s.logger)
	req, err := s.Get(ctx, prepid)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", prepid, ErrNotFound)
	}
	if corerequest.Status(req.Status) != corerequest.StatusSubmitting {
		logger.Info(
			logkeys.Message, "skipping submission, request moved on",
			logkeys.PrepID, prepid,
			logkeys.Status, req.Status,
		)
		return nil
	}

	sub, err := s.subcampaigns.Get(ctx, req.Subcampaign)
	if err != nil {
		return err
	}
	if sub == nil {
		return s.failSubmission(ctx, req, fmt.Errorf("subcampaign %s: %w", req.Subcampaign, ErrNotFound))
	}
	job, err := corerequest.JobDescription(req, sub)
	if err != nil {
		return s.failSubmission(ctx, req, err)
	}
	name, err := s.workflows.Submit(ctx, job)
	if err != nil {
		return s.failSubmission(ctx, req, fmt.Errorf("%w: %v", ErrRemoteFailure, err))
	}

	req.Workflows = append(req.Workflows, models.Workflow{Name: name, Type: "ReReco"})
	req.AddHistory("submission", name, s.now().Unix())
	if err := s.saveStatus(ctx, req, corerequest.StatusSubmitted, s.now().Unix()); err != nil {
		return err
	}
	logger.Info(
		logkeys.Message, "workflow submitted",
		logkeys.PrepID, prepid,
		logkeys.WorkflowName, name,
	)

	// The statistics service will not know the workflow yet; syncing is
	// best effort right after submission.
	if _, err := s.updateWorkflowsLocked(ctx, req); err != nil {
		logger.Info(
			logkeys.Message, "post-submission workflow sync failed",
			logkeys.PrepID, prepid,
			logkeys.Error, err,
		)
	}
	return nil
}

func (s *RequestService) failSubmission(ctx context.Context, req *models.Request, cause error) error {
	req.AddHistory("submission_failed", cause.Error(), s.now().Unix())
	if err := s.saveStatus(ctx, req, corerequest.StatusApproved, s.now().Unix()); err != nil {
		return err
	}
	return fmt.Errorf("submitting request %s: %w", req.PrepID, cause)
}

// ValidateCreate implements Hooks.
func (s *RequestService) ValidateCreate(ctx context.Context, req *models.Request) error {
	if req.ProcessingString == "" {
		return fmt.Errorf("request %s has no processing string", req.PrepID)
	}
	if corerequest.Status(req.Status) != corerequest.InitialStatus() {
		return fmt.Errorf("request %s must start in status %s", req.PrepID, corerequest.InitialStatus())
	}
	return nil
}

// ValidateUpdate implements Hooks. Status changes go through the state
// machine operations, never through plain updates.
func (s *RequestService) ValidateUpdate(ctx context.Context, old, updated *models.Request, changed []string) error {
	if err := corerequest.CanUpdate(corerequest.Status(old.Status)).Error(); err != nil {
		return err
	}
	for _, path := range changed {
		if path == "status" {
			return fmt.Errorf("status of %s cannot change through an update", old.PrepID)
		}
	}
	return nil
}

// ValidateDelete implements Hooks.
func (s *RequestService) ValidateDelete(ctx context.Context, req *models.Request) error {
	return corerequest.CanDelete(req.PrepID, corerequest.Status(req.Status)).Error()
}

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

func newTestTicket() *models.Ticket {
	return &models.Ticket{
		Steps: []models.TicketStep{
			{
				Subcampaign:      testSubcampaign,
				ProcessingString: "19Nov2024",
				TimePerEvent:     1.5,
				SizePerEvent:     2048,
			},
			{
				Subcampaign:      testSubcampaign,
				ProcessingString: "19Nov2024_2ndStep",
				JoinType:         "harvest",
			},
		},
		InputDatasets: []string{testInputDataset},
	}
}

func TestCreateTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tickets.Create(ctx, newTestTicket())
	if err != nil {
		t.Fatal(err)
	}
	if created.PrepID != "Run2024A_19Nov2024-19Nov2024-00001" {
		t.Errorf("prepid: have %s", created.PrepID)
	}
	if created.Status != "new" {
		t.Errorf("status: have %s, want new", created.Status)
	}

	second, err := env.tickets.Create(ctx, newTestTicket())
	if err != nil {
		t.Fatal(err)
	}
	if second.PrepID != "Run2024A_19Nov2024-19Nov2024-00002" {
		t.Errorf("serial did not advance: have %s", second.PrepID)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*models.Ticket){
		"no steps":            func(t *models.Ticket) { t.Steps = nil },
		"missing subcampaign": func(t *models.Ticket) { t.Steps[0].Subcampaign = "" },
		"missing join type":   func(t *models.Ticket) { t.Steps[1].JoinType = "" },
		"unknown subcampaign": func(t *models.Ticket) { t.Steps[1].Subcampaign = "Run9999X_Nowhere" },
		"blacklisted dataset": func(t *models.Ticket) {
			t.InputDatasets = []string{"/Commissioning/Run2024A-v1/RAW"}
		},
	} {
		t.Run(name, func(t *testing.T) {
			ticket := newTestTicket()
			mutate(ticket)
			if _, err := env.tickets.Create(ctx, ticket); !errors.Is(err, ErrValidationFailed) {
				t.Errorf("have %v, want ErrValidationFailed", err)
			}
		})
	}
}

func TestCreateRequestsExpandsChains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.catalog.runs[testInputDataset] = []int{1, 2, 3}
	env.cert.runs[testCertPath] = []int{2, 3, 4}

	ticket := newTestTicket()
	ticket.InputDatasets = []string{
		testInputDataset,
		"/Muon/Run2024A-v1/RAW",
	}
	created, err := env.tickets.Create(ctx, ticket)
	if err != nil {
		t.Fatal(err)
	}

	groups, err := env.tickets.CreateRequests(ctx, created.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("chains: have %d, want 2", len(groups))
	}
	if groups[0].ChainedRequest != "Chain-Run2024A-ZeroBias-19Nov2024-00001" {
		t.Errorf("chain prepid: have %s", groups[0].ChainedRequest)
	}
	wantRequests := []string{
		"ReReco-Run2024A-ZeroBias-19Nov2024-00001",
		"ReReco-Run2024A-ZeroBias-19Nov2024_2ndStep-00001",
	}
	if len(groups[0].Requests) != 2 ||
		groups[0].Requests[0] != wantRequests[0] ||
		groups[0].Requests[1] != wantRequests[1] {
		t.Errorf("chain requests: have %v, want %v", groups[0].Requests, wantRequests)
	}

	first, err := env.requests.Get(ctx, wantRequests[0])
	if err != nil {
		t.Fatal(err)
	}
	if first.InputDataset != testInputDataset {
		t.Errorf("input dataset: have %s", first.InputDataset)
	}
	if len(first.Runs) != 2 {
		t.Errorf("runs not resolved during expansion: %v", first.Runs)
	}

	chain, err := env.chains.Get(ctx, groups[0].ChainedRequest)
	if err != nil {
		t.Fatal(err)
	}
	if chain == nil {
		t.Fatal("chained request was not persisted")
	}
	if chain.Requests[1].JoinType != "harvest" {
		t.Errorf("join type: %v", chain.Requests)
	}

	done, err := env.tickets.Get(ctx, created.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != "done" {
		t.Errorf("ticket status: have %s, want done", done.Status)
	}
	if len(done.CreatedRequests) != 2 {
		t.Errorf("created requests not recorded: %v", done.CreatedRequests)
	}
	last := done.History[len(done.History)-1]
	if last.Action != "create_requests" {
		t.Errorf("history action: have %s, want create_requests", last.Action)
	}

	if _, err := env.tickets.CreateRequests(ctx, created.PrepID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second expansion: have %v, want ErrInvalidTransition", err)
	}
}

func TestCreateRequestsRollsBackAllChains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := newTestTicket()
	// The second dataset cannot be parsed, so its chain fails after the
	// first chain was fully created.
	ticket.InputDatasets = []string{testInputDataset, "junk"}
	created, err := env.tickets.Create(ctx, ticket)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.tickets.CreateRequests(ctx, created.PrepID); err == nil {
		t.Fatal("expected the expansion to fail")
	}

	requests, err := env.requests.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 0 {
		t.Errorf("requests left behind after rollback: %v", requests)
	}
	chains, err := env.chains.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chains) != 0 {
		t.Errorf("chained requests left behind after rollback: %v", chains)
	}

	after, err := env.tickets.Get(ctx, created.PrepID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != "new" {
		t.Errorf("ticket status: have %s, want new", after.Status)
	}
	if len(after.CreatedRequests) != 0 {
		t.Errorf("created requests recorded despite failure: %v", after.CreatedRequests)
	}
}

func TestTicketUpdateGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tickets.Create(ctx, newTestTicket())
	if err != nil {
		t.Fatal(err)
	}

	created.Status = "done"
	if _, err := env.tickets.Update(ctx, created); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("status edit: have %v, want ErrValidationFailed", err)
	}

	created.Status = "new"
	created.Notes = "reprocessing for the November data review"
	updated, err := env.tickets.Update(ctx, created)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Notes == "" {
		t.Error("notes edit did not persist")
	}
}

func TestDeleteTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.catalog.runs[testInputDataset] = []int{1}

	created, err := env.tickets.Create(ctx, newTestTicket())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.tickets.CreateRequests(ctx, created.PrepID); err != nil {
		t.Fatal(err)
	}
	if err := env.tickets.Delete(ctx, created.PrepID); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("delete of expanded ticket: have %v, want ErrValidationFailed", err)
	}

	fresh, err := env.tickets.Create(ctx, newTestTicket())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.tickets.Delete(ctx, fresh.PrepID); err != nil {
		t.Fatal(err)
	}
}

func TestTicketDatasets(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.datasets = []secondary.CatalogDataset{
		{Name: "/ZeroBias/Run2024A-v1/RAW", AccessType: "VALID"},
		{Name: "/Muon/Run2024A-v1/RAW", AccessType: "PRODUCTION"},
		{Name: "/DeletedThing/Run2024A-v1/RAW", AccessType: "DELETED"},
		{Name: "/Commissioning/Run2024A-v1/RAW", AccessType: "VALID"},
	}

	datasets, err := env.tickets.Datasets(context.Background(), "/*/Run2024A-v1/RAW")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/ZeroBias/Run2024A-v1/RAW", "/Muon/Run2024A-v1/RAW"}
	if len(datasets) != 2 || datasets[0] != want[0] || datasets[1] != want[1] {
		t.Errorf("have %v, want %v", datasets, want)
	}
}

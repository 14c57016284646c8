package app

import (
	"context"
	"fmt"
	"regexp"

	"github.com/micromdm/nanolib/log"

	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/models"
	"github.com/example/reproc/internal/ports/secondary"
)

// Subcampaign identifiers are chosen by the operator, not generated.
var subcampaignIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_]{0,49}$`)

// SubcampaignService manages the subcampaign templates requests are
// seeded from.
type SubcampaignService struct {
	lifecycle *Lifecycle[*models.Subcampaign]
	store     secondary.EntityStore
	requests  secondary.EntityStore
}

func NewSubcampaignService(opener secondary.StoreOpener, locks *locker.Locker, logger log.Logger) (*SubcampaignService, error) {
	store, err := opener.Open("subcampaigns")
	if err != nil {
		return nil, fmt.Errorf("opening subcampaign store: %w", err)
	}
	requests, err := opener.Open("requests")
	if err != nil {
		return nil, fmt.Errorf("opening request store: %w", err)
	}
	s := &SubcampaignService{store: store, requests: requests}
	s.lifecycle = NewLifecycle("subcampaign", store, locks, s, func() *models.Subcampaign {
		return &models.Subcampaign{}
	}, logger)
	return s, nil
}

func (s *SubcampaignService) Create(ctx context.Context, sub *models.Subcampaign) (*models.Subcampaign, error) {
	return s.lifecycle.Create(ctx, sub)
}

func (s *SubcampaignService) Get(ctx context.Context, prepid string) (*models.Subcampaign, error) {
	return s.lifecycle.Get(ctx, prepid)
}

func (s *SubcampaignService) List(ctx context.Context, limit int) ([]*models.Subcampaign, error) {
	docs, err := s.store.Query(ctx, secondary.Query{Field: "prepid", Value: "*", Limit: limit, SortAsc: true})
	if err != nil {
		return nil, fmt.Errorf("querying subcampaigns: %w", err)
	}
	subs := make([]*models.Subcampaign, 0, len(docs))
	for _, doc := range docs {
		sub := &models.Subcampaign{}
		if err := documentInto(doc, sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *SubcampaignService) Update(ctx context.Context, sub *models.Subcampaign) (*models.Subcampaign, error) {
	return s.lifecycle.Update(ctx, sub)
}

func (s *SubcampaignService) Delete(ctx context.Context, prepid string) error {
	return s.lifecycle.Delete(ctx, prepid)
}

// ValidateCreate implements Hooks.
func (s *SubcampaignService) ValidateCreate(ctx context.Context, sub *models.Subcampaign) error {
	if !subcampaignIDPattern.MatchString(sub.PrepID) {
		return fmt.Errorf("invalid subcampaign name %q", sub.PrepID)
	}
	if sub.Release == "" {
		return fmt.Errorf("subcampaign %s has no release", sub.PrepID)
	}
	if len(sub.Sequences) == 0 {
		return fmt.Errorf("subcampaign %s has no sequences", sub.PrepID)
	}
	return nil
}

// ValidateUpdate implements Hooks.
func (s *SubcampaignService) ValidateUpdate(ctx context.Context, old, updated *models.Subcampaign, changed []string) error {
	if updated.Release == "" {
		return fmt.Errorf("subcampaign %s has no release", updated.PrepID)
	}
	return nil
}

// ValidateDelete implements Hooks. A subcampaign stays as long as any
// request references it.
func (s *SubcampaignService) ValidateDelete(ctx context.Context, sub *models.Subcampaign) error {
	docs, err := s.requests.Query(ctx, secondary.Query{Field: "subcampaign", Value: sub.PrepID, Limit: 1})
	if err != nil {
		return fmt.Errorf("querying requests of subcampaign %s: %w", sub.PrepID, err)
	}
	if len(docs) > 0 {
		return fmt.Errorf("subcampaign %s is referenced by request %v", sub.PrepID, docs[0]["prepid"])
	}
	return nil
}

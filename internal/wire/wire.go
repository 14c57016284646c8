// Package wire assembles the application from configuration. It picks
// the storage backend, builds the remote clients and wires the
// lifecycle services together.
package wire

import (
	"fmt"

	"github.com/micromdm/nanolib/log"

	"github.com/example/reproc/internal/adapters/certification"
	"github.com/example/reproc/internal/adapters/dbs"
	"github.com/example/reproc/internal/adapters/remote"
	"github.com/example/reproc/internal/adapters/reqmgr"
	"github.com/example/reproc/internal/adapters/stats"
	diskvstore "github.com/example/reproc/internal/adapters/store/diskv"
	"github.com/example/reproc/internal/adapters/store/inmem"
	mysqlstore "github.com/example/reproc/internal/adapters/store/mysql"
	sqlitestore "github.com/example/reproc/internal/adapters/store/sqlite"
	"github.com/example/reproc/internal/app"
	"github.com/example/reproc/internal/config"
	"github.com/example/reproc/internal/locker"
	"github.com/example/reproc/internal/ports/secondary"
)

// Container holds the assembled services.
type Container struct {
	Requests     *app.RequestService
	Tickets      *app.TicketService
	Subcampaigns *app.SubcampaignService
	Chains       *app.ChainedRequestService
	Submitter    *app.Submitter
}

// Build assembles the application from cfg. The returned container owns
// no goroutines; the caller runs the submitter.
func Build(cfg *config.Config, logger log.Logger) (*Container, error) {
	opener, err := newOpener(cfg)
	if err != nil {
		return nil, err
	}

	locks := locker.New()
	executor := remote.NewSSHExecutor(logger.With("adapter", "ssh"))
	workflows := reqmgr.New(cfg.ReqMgrURL)
	statsClient := stats.New(cfg.Stats.URL, executor, cfg.Stats.RefreshHost, cfg.Stats.ScriptDir)
	catalog := dbs.New(cfg.DBSURL)
	cert := certification.New(cfg.CertificationURL)

	subcampaigns, err := app.NewSubcampaignService(opener, locks, logger)
	if err != nil {
		return nil, err
	}
	requests, err := app.NewRequestService(opener, subcampaigns, workflows, statsClient, catalog, cert, locks, logger)
	if err != nil {
		return nil, err
	}
	chains, err := app.NewChainedRequestService(opener, requests, locks, logger)
	if err != nil {
		return nil, err
	}
	tickets, err := app.NewTicketService(opener, requests, chains, subcampaigns, catalog, locks, cfg.DatasetBlacklist, logger)
	if err != nil {
		return nil, err
	}
	submitter := app.NewSubmitter(requests, cfg.SubmitterQueueSize, logger.With("worker", "submitter"))

	return &Container{
		Requests:     requests,
		Tickets:      tickets,
		Subcampaigns: subcampaigns,
		Chains:       chains,
		Submitter:    submitter,
	}, nil
}

func newOpener(cfg *config.Config) (secondary.StoreOpener, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return sqlitestore.NewOpener(cfg.Store.Path)
	case "mysql":
		return mysqlstore.NewOpener(cfg.Store.DSN)
	case "diskv":
		return diskvstore.NewOpener(cfg.Store.Path), nil
	case "inmem":
		return inmem.NewOpener(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

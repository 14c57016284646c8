package httpapi

import (
	"github.com/micromdm/nanolib/log"
)

// HandleAPIv1 registers the various API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// They are assumed to be layered with mux, possibly at the Handle call.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, requests RequestManager, tickets TicketManager, subcampaigns SubcampaignManager, chains ChainManager) {
	// requests

	mux.Handle(
		prefix+"/requests",
		CreateRequestHandler(requests, logger.With("handler", "create request")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests",
		ListRequestsHandler(requests, logger.With("handler", "list requests")),
		"GET",
	)
	mux.Handle(
		prefix+"/requests/:prepid",
		GetRequestHandler(requests, logger.With("handler", "get request")),
		"GET",
	)
	mux.Handle(
		prefix+"/requests/:prepid",
		UpdateRequestHandler(requests, logger.With("handler", "update request")),
		"PUT",
	)
	mux.Handle(
		prefix+"/requests/:prepid",
		DeleteRequestHandler(requests, logger.With("handler", "delete request")),
		"DELETE",
	)
	mux.Handle(
		prefix+"/requests/:prepid/next",
		NextStatusHandler(requests, logger.With("handler", "next status")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests/:prepid/previous",
		PreviousStatusHandler(requests, logger.With("handler", "previous status")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests/:prepid/workflows",
		UpdateWorkflowsHandler(requests, logger.With("handler", "update workflows")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests/:prepid/priority",
		ChangePriorityHandler(requests, logger.With("handler", "change priority")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests/:prepid/reset",
		OptionResetHandler(requests, logger.With("handler", "option reset")),
		"POST",
	)
	mux.Handle(
		prefix+"/requests/:prepid/runs",
		RequestRunsHandler(requests, logger.With("handler", "request runs")),
		"GET",
	)

	// tickets

	mux.Handle(
		prefix+"/tickets",
		CreateTicketHandler(tickets, logger.With("handler", "create ticket")),
		"POST",
	)
	mux.Handle(
		prefix+"/tickets",
		ListTicketsHandler(tickets, logger.With("handler", "list tickets")),
		"GET",
	)
	mux.Handle(
		prefix+"/tickets/:prepid",
		GetTicketHandler(tickets, logger.With("handler", "get ticket")),
		"GET",
	)
	mux.Handle(
		prefix+"/tickets/:prepid",
		UpdateTicketHandler(tickets, logger.With("handler", "update ticket")),
		"PUT",
	)
	mux.Handle(
		prefix+"/tickets/:prepid",
		DeleteTicketHandler(tickets, logger.With("handler", "delete ticket")),
		"DELETE",
	)
	mux.Handle(
		prefix+"/tickets/:prepid/create-requests",
		CreateTicketRequestsHandler(tickets, logger.With("handler", "create ticket requests")),
		"POST",
	)

	// dataset catalog

	mux.Handle(
		prefix+"/datasets",
		DatasetSearchHandler(tickets, logger.With("handler", "search datasets")),
		"GET",
	)

	// subcampaigns

	mux.Handle(
		prefix+"/subcampaigns",
		CreateSubcampaignHandler(subcampaigns, logger.With("handler", "create subcampaign")),
		"POST",
	)
	mux.Handle(
		prefix+"/subcampaigns",
		ListSubcampaignsHandler(subcampaigns, logger.With("handler", "list subcampaigns")),
		"GET",
	)
	mux.Handle(
		prefix+"/subcampaigns/:prepid",
		GetSubcampaignHandler(subcampaigns, logger.With("handler", "get subcampaign")),
		"GET",
	)
	mux.Handle(
		prefix+"/subcampaigns/:prepid",
		UpdateSubcampaignHandler(subcampaigns, logger.With("handler", "update subcampaign")),
		"PUT",
	)
	mux.Handle(
		prefix+"/subcampaigns/:prepid",
		DeleteSubcampaignHandler(subcampaigns, logger.With("handler", "delete subcampaign")),
		"DELETE",
	)

	// chained requests

	mux.Handle(
		prefix+"/chained-requests",
		ListChainedRequestsHandler(chains, logger.With("handler", "list chained requests")),
		"GET",
	)
	mux.Handle(
		prefix+"/chained-requests/:prepid",
		GetChainedRequestHandler(chains, logger.With("handler", "get chained request")),
		"GET",
	)
	mux.Handle(
		prefix+"/chained-requests/:prepid",
		DeleteChainedRequestHandler(chains, logger.With("handler", "delete chained request")),
		"DELETE",
	)
}

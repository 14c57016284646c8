package models

// ChainLink is one member of a chained request. JoinType is empty for the
// first request of the chain.
type ChainLink struct {
	Request  string `json:"request"`
	JoinType string `json:"join_type,omitempty"`
}

// ChainedRequest is an ordered sequence of dependent requests sharing
// dataset lineage. It is the rollback unit during ticket expansion.
type ChainedRequest struct {
	Base

	Requests []ChainLink `json:"requests"`
}

// RequestIDs returns the member request identifiers in chain order.
func (c *ChainedRequest) RequestIDs() []string {
	ids := make([]string, len(c.Requests))
	for i, link := range c.Requests {
		ids[i] = link.Request
	}
	return ids
}

package domain

// AllowedCallerIP is one allowed caller range inside a workflow's
// accessControl block.
type AllowedCallerIP struct {
	AddressRange string `json:"addressRange"`
}

// CallerPolicy is the per-surface (triggers/contents) allowlist.
type CallerPolicy struct {
	AllowedCallerIPAddresses []AllowedCallerIP `json:"allowedCallerIpAddresses"`
}

// AccessControl is a Consumption workflow's accessControl block. Contents is
// omitted entirely when content access is not managed, never set to empty.
type AccessControl struct {
	Triggers *CallerPolicy `json:"triggers,omitempty"`
	Contents *CallerPolicy `json:"contents,omitempty"`
}

// Addresses extracts the raw address ranges from a caller policy. A nil
// policy yields nil.
func (p *CallerPolicy) Addresses() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.AllowedCallerIPAddresses))
	for _, e := range p.AllowedCallerIPAddresses {
		out = append(out, e.AddressRange)
	}
	return out
}

// WorkflowProperties is the whitelisted subset of a Consumption workflow's
// properties that is round-tripped into the replacement body. The workflow
// API is full-replace; anything not listed here is intentionally dropped.
type WorkflowProperties struct {
	Definition         any            `json:"definition,omitempty"`
	Parameters         any            `json:"parameters,omitempty"`
	IntegrationAccount any            `json:"integrationAccount,omitempty"`
	Kind               string         `json:"kind,omitempty"`
	Sku                any            `json:"sku,omitempty"`
	State              string         `json:"state,omitempty"`
	AccessControl      *AccessControl `json:"accessControl,omitempty"`
}

// WorkflowResource is the remote representation of a Consumption workflow,
// reduced to the fields that survive a full-replace write.
type WorkflowResource struct {
	Location   string             `json:"location,omitempty"`
	Tags       map[string]string  `json:"tags,omitempty"`
	Properties WorkflowProperties `json:"properties"`
}

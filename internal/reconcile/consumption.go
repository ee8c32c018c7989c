package reconcile

import (
	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

// DesiredAccessControl builds the replacement accessControl block for a
// Consumption workflow. Triggers are always set; contents is present only
// when content access is managed, otherwise the key is omitted entirely.
func DesiredAccessControl(prefixes domain.PrefixSet, includeContents bool) *domain.AccessControl {
	callers := make([]domain.AllowedCallerIP, 0, len(prefixes))
	for _, p := range prefixes {
		callers = append(callers, domain.AllowedCallerIP{AddressRange: p})
	}

	ac := &domain.AccessControl{
		Triggers: &domain.CallerPolicy{AllowedCallerIPAddresses: callers},
	}
	if includeContents {
		ac.Contents = &domain.CallerPolicy{AllowedCallerIPAddresses: callers}
	}
	return ac
}

// NeedsUpdate reports whether the existing access control differs from the
// prefix set. Comparison is set equality: order and duplicates are ignored.
// A nil existing block always needs an update.
func NeedsUpdate(existing *domain.AccessControl, prefixes domain.PrefixSet, includeContents bool) bool {
	if existing == nil {
		return true
	}
	if !prefixes.EqualsAsSet(existing.Triggers.Addresses()) {
		return true
	}
	if includeContents && !prefixes.EqualsAsSet(existing.Contents.Addresses()) {
		return true
	}
	return false
}

// BuildWorkflowBody constructs the full-replace request body for a workflow
// write. Only the whitelisted property subset of the existing resource is
// carried forward; the workflow API does not support partial updates, so any
// other existing property is intentionally dropped.
func BuildWorkflowBody(existing *domain.WorkflowResource, ac *domain.AccessControl) *domain.WorkflowResource {
	body := &domain.WorkflowResource{}
	if existing != nil {
		body.Location = existing.Location
		body.Tags = existing.Tags
		body.Properties = domain.WorkflowProperties{
			Definition:         existing.Properties.Definition,
			Parameters:         existing.Properties.Parameters,
			IntegrationAccount: existing.Properties.IntegrationAccount,
			Kind:               existing.Properties.Kind,
			Sku:                existing.Properties.Sku,
			State:              existing.Properties.State,
		}
	}
	body.Properties.AccessControl = ac
	return body
}

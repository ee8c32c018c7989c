// Package reconcile computes the desired access configuration for a target
// resource from an extracted prefix set. All functions are pure; reads and
// writes belong to the sync service.
package reconcile

import (
	"fmt"
	"regexp"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

// GeneratedNamePrefix marks restriction entries owned by this tool. Entries
// whose name does not match the pattern are user-owned and preserved.
const GeneratedNamePrefix = "AzureGov_LogicApps_USGovTX_"

var generatedNameRe = regexp.MustCompile(`^AzureGov_LogicApps_USGovTX_[0-9]+$`)

// Priorities are recomputed every run as 10, 20, 30, ... over the full merged
// list, preserved entries first.
const (
	priorityStart = 10
	priorityStep  = 10
)

// IsGeneratedName reports whether a restriction name matches the reserved
// auto-generated pattern.
func IsGeneratedName(name string) bool {
	return generatedNameRe.MatchString(name)
}

// MergeRestrictions builds the new desired ipSecurityRestrictions list for a
// Standard (App-Service-backed) target. User-owned entries keep their content
// and always sort ahead of the regenerated entries; old generated entries are
// discarded. Every entry gets a fresh priority.
func MergeRestrictions(existing []domain.IPSecurityRestriction, prefixes domain.PrefixSet, sourceURL string) []domain.IPSecurityRestriction {
	merged := make([]domain.IPSecurityRestriction, 0, len(existing)+len(prefixes))

	for _, e := range existing {
		if IsGeneratedName(e.Name) {
			continue
		}
		merged = append(merged, e)
	}

	for i, prefix := range prefixes {
		merged = append(merged, domain.IPSecurityRestriction{
			IPAddress:   prefix,
			Action:      "Allow",
			Name:        fmt.Sprintf("%s%d", GeneratedNamePrefix, i+1),
			Description: fmt.Sprintf("Logic Apps outbound prefix from %s", sourceURL),
		})
	}

	for i := range merged {
		merged[i].Priority = priorityStart + i*priorityStep
	}

	return merged
}

// Package validation holds input checks shared by the CLI and the HTTP API.
package validation

import (
	"net/netip"
	"strings"
)

// ValidateResourceID checks the basic shape of an ARM resource id.
func ValidateResourceID(resourceID string) ValidationErrors {
	var errs ValidationErrors

	if resourceID == "" {
		errs.Add("resource_id", resourceID, "is required")
		return errs
	}
	if !strings.HasPrefix(resourceID, "/subscriptions/") {
		errs.Add("resource_id", resourceID, "must start with /subscriptions/")
	}
	if !strings.Contains(resourceID, "/providers/") {
		errs.Add("resource_id", resourceID, "must contain a /providers/ segment")
	}
	return errs
}

// ValidateCIDR checks that a string is valid CIDR notation.
func ValidateCIDR(value string) ValidationErrors {
	var errs ValidationErrors
	if _, err := netip.ParsePrefix(value); err != nil {
		errs.Add("cidr", value, "is not valid CIDR notation")
	}
	return errs
}

package domain

// IPSecurityRestriction is one entry in an App Service site's
// ipSecurityRestrictions list. The optional fields are carried so that
// preserved (user-owned) entries round-trip without losing content.
type IPSecurityRestriction struct {
	IPAddress            string              `json:"ipAddress"`
	Action               string              `json:"action"`
	Priority             int                 `json:"priority"`
	Name                 string              `json:"name"`
	Description          string              `json:"description,omitempty"`
	Tag                  string              `json:"tag,omitempty"`
	VnetSubnetResourceID string              `json:"vnetSubnetResourceId,omitempty"`
	Headers              map[string][]string `json:"headers,omitempty"`
}

// SiteConfigProperties holds the subset of a site's config/web properties this
// tool reads and writes. The write body carries only ipSecurityRestrictions;
// the config endpoint merges at the property level.
type SiteConfigProperties struct {
	IPSecurityRestrictions []IPSecurityRestriction `json:"ipSecurityRestrictions"`
}

// SiteConfig is the request/response envelope for the config/web resource.
type SiteConfig struct {
	Properties SiteConfigProperties `json:"properties"`
}

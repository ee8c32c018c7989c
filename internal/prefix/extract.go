// Package prefix extracts CIDR prefixes from a downloaded document of
// unknown shape. A fixed chain of structured strategies is tried first; the
// raw response text is scanned with CIDR regexes only when every structured
// strategy comes up empty.
package prefix

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

var (
	// Dotted-quad with each octet 0-255 and a /0-/32 mask.
	ipv4CIDR = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])/(?:3[0-2]|[12]?[0-9])\b`)
	// Colon-separated hex groups with a /0-/128 mask. Deliberately loose on
	// group structure; candidates are validated with netip before use.
	ipv6CIDR = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{0,4}:){2,7}[0-9A-Fa-f]{0,4}/(?:12[0-8]|1[01][0-9]|[0-9]{1,2})\b`)
)

// A strategy inspects the decoded document and returns candidate prefixes.
// Strategies are pure; the first one returning a non-empty slice wins.
type strategy struct {
	name string
	fn   func(doc any) []string
}

var strategies = []strategy{
	{"string array", fromStringArray},
	{"values[].properties", fromValues},
	{"prefixes field", fromPrefixesField},
	{"route table resources", fromRouteTables},
	{"properties.addressPrefixes", fromProperties},
}

// Extract produces the deduplicated prefix set for a run. doc is the decoded
// JSON document (nil when the response body was not JSON); raw is the
// response text used by the regex fallback. The returned string names the
// strategy that produced the set, for status output.
func Extract(doc any, raw string) (domain.PrefixSet, string, error) {
	var candidates []string
	source := ""

	if doc != nil {
		for _, s := range strategies {
			if found := s.fn(doc); len(found) > 0 {
				candidates = found
				source = s.name
				break
			}
		}
	}

	if len(candidates) == 0 {
		candidates = fromRawText(raw)
		source = "raw text scan"
	}

	set := dedupe(candidates)
	if len(set) == 0 {
		return nil, source, fmt.Errorf("%w via %s", domain.ErrNoPrefixesFound, source)
	}
	return set, source, nil
}

// fromStringArray handles a document that is itself a plain array of strings.
func fromStringArray(doc any) []string {
	arr, ok := doc.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// fromValues handles the service-tag shape: values[] entries carrying
// properties.addressPrefixes (or a single properties.addressPrefix).
func fromValues(doc any) []string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	values, ok := obj["values"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range values {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		props, ok := entry["properties"].(map[string]any)
		if !ok {
			continue
		}
		if prefixes, ok := props["addressPrefixes"].([]any); ok {
			for _, p := range prefixes {
				if s, ok := p.(string); ok {
					out = append(out, s)
				}
			}
			continue
		}
		if s, ok := props["addressPrefix"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// fromPrefixesField handles a flat {"prefixes": [...]} document.
func fromPrefixesField(doc any) []string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	prefixes, ok := obj["prefixes"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range prefixes {
		if s, ok := p.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// fromRouteTables handles an ARM template: route-table resources whose
// routes carry properties.addressPrefix.
func fromRouteTables(doc any) []string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	resources, ok := obj["resources"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, r := range resources {
		res, ok := r.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := res["type"].(string)
		if !strings.HasPrefix(typ, "Microsoft.Network/routeTables") {
			continue
		}
		props, ok := res["properties"].(map[string]any)
		if !ok {
			continue
		}
		routes, ok := props["routes"].([]any)
		if !ok {
			continue
		}
		for _, rt := range routes {
			route, ok := rt.(map[string]any)
			if !ok {
				continue
			}
			rprops, ok := route["properties"].(map[string]any)
			if !ok {
				continue
			}
			if s, ok := rprops["addressPrefix"].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// fromProperties handles a single object with properties.addressPrefixes.
func fromProperties(doc any) []string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		return nil
	}
	prefixes, ok := props["addressPrefixes"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range prefixes {
		if s, ok := p.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// fromRawText scans the raw response text for CIDR notation, IPv4 matches
// first, then IPv6. Regex candidates must also parse as real prefixes.
func fromRawText(raw string) []string {
	var out []string
	for _, m := range ipv4CIDR.FindAllString(raw, -1) {
		out = append(out, m)
	}
	for _, m := range ipv6CIDR.FindAllString(raw, -1) {
		if _, err := netip.ParsePrefix(m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// dedupe drops empty entries and duplicates, preserving first occurrence.
func dedupe(candidates []string) domain.PrefixSet {
	seen := make(map[string]struct{}, len(candidates))
	var set domain.PrefixSet
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		set = append(set, c)
	}
	return set
}

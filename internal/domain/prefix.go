package domain

// PrefixSet is an ordered, deduplicated sequence of CIDR strings. It is built
// once per run by the extractor and never mutated afterwards.
type PrefixSet []string

// Contains reports whether the set holds the exact prefix string.
func (p PrefixSet) Contains(prefix string) bool {
	for _, v := range p {
		if v == prefix {
			return true
		}
	}
	return false
}

// EqualsAsSet compares the prefix set against an arbitrary list of address
// strings, ignoring order and duplicates. Comparison is exact-string.
func (p PrefixSet) EqualsAsSet(addresses []string) bool {
	want := make(map[string]struct{}, len(p))
	for _, v := range p {
		want[v] = struct{}{}
	}
	got := make(map[string]struct{}, len(addresses))
	for _, v := range addresses {
		got[v] = struct{}{}
	}
	if len(want) != len(got) {
		return false
	}
	for v := range want {
		if _, ok := got[v]; !ok {
			return false
		}
	}
	return true
}

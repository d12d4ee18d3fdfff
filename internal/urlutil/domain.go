package urlutil

import "strings"

// RegistrableDomain returns a coarse "registrable domain" for a host: the
// last two labels, or the last three when the second-to-last label is a
// known short public suffix component (co, com, org, gov, ac, net, edu) paired
// with a two-letter country code, e.g. "co.uk". This is a heuristic, not a
// full public-suffix-list lookup; no such list ships in the dependency
// corpus this module draws from, and backward-link comparison only needs
// "same site" in the common case, not perfect eTLD+1 accuracy.
func RegistrableDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	secondLevel := labels[len(labels)-2]
	tld := labels[len(labels)-1]
	if len(tld) == 2 && isShortPublicSuffixLabel(secondLevel) {
		if len(labels) >= 3 {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func isShortPublicSuffixLabel(label string) bool {
	switch label {
	case "co", "com", "org", "gov", "ac", "net", "edu":
		return true
	default:
		return false
	}
}

// SameSite reports whether two absolute URLs' hosts share a registrable domain.
func SameSite(hostA, hostB string) bool {
	return RegistrableDomain(hostA) == RegistrableDomain(hostB)
}

// Package classify maps a SERP result's host domain to a (label, score)
// pair using a tiered taxonomy of known job-board, ATS and aggregator
// domains. Domain reputation is a cheap, explainable proxy for "this hit is
// the authoritative posting" and drives candidate selection.
package classify

import (
	"net/url"
	"strings"

	"github.com/jonathan/jobserp-explorer/internal/types"
)

// EmployerScore is assigned when the company name appears in the domain,
// the highest-confidence signal in the cascade.
const EmployerScore = 2.5

// LabelAndScore classifies a host domain given the associated company name.
// The cascade is a strict priority order, first match wins:
// employer substring, then the ATS table, then the aggregator table.
// Absence of any match is a valid terminal classification, never an error.
func LabelAndScore(domain, company string) (types.Label, float64) {
	domain = strings.ToLower(domain)
	company = strings.ToLower(strings.TrimSpace(company))

	if company != "" && strings.Contains(domain, company) {
		return types.LabelEmployer, EmployerScore
	}

	for _, p := range atsProviders {
		if strings.Contains(domain, p.Substring) {
			return p.Label, p.Score
		}
	}

	for _, p := range aggregators {
		if strings.Contains(domain, p.Substring) {
			return p.Label, p.Score
		}
	}

	return types.LabelUnknown, 0
}

// DomainOf extracts the lowercased host from a URL string. Unparseable or
// hostless URLs yield an empty domain, which classifies as Unknown.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// Package crawler drives one scrape session end to end: load the search
// page, scroll the results feed, extract listing cards, enrich each business
// on its detail page and persist the outcome.
package crawler

import (
	"fmt"
	"strings"
)

const (
	defaultMaxResults = 20
	maxResultsCeiling = 200
)

// Request describes one crawl session.
type Request struct {
	Query      string `json:"query"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
	Headless   bool   `json:"headless"`
}

// Validate normalizes the request in place. A zero MaxResults picks the
// default; out-of-range values are rejected rather than clamped so callers
// notice misconfiguration.
func (r *Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	r.Location = strings.TrimSpace(r.Location)
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.MaxResults == 0 {
		r.MaxResults = defaultMaxResults
	}
	if r.MaxResults < 1 || r.MaxResults > maxResultsCeiling {
		return fmt.Errorf("max_results must be between 1 and %d, got %d", maxResultsCeiling, r.MaxResults)
	}
	return nil
}

// Stats aggregates the counters of one session. Partial progress stays
// visible through the counters even when individual businesses fail.
type Stats struct {
	ResultsCount      int    `json:"results_count"`
	Query             string `json:"query"`
	Location          string `json:"location"`
	TotalAttempted    int    `json:"total_attempted"`
	TotalSuccessful   int    `json:"total_successful"`
	CaptchaEncounters int    `json:"captcha_encounters"`
	DetailFailures    int    `json:"detail_failures"`
	DetailSuccesses   int    `json:"detail_successes"`
}

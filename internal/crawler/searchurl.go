package crawler

import (
	"net/url"
	"strings"
)

const searchBaseURL = "https://www.google.com/maps/search/"

// BuildSearchURL composes the maps search URL for a query and optional
// location, query-escaped as one combined term.
func BuildSearchURL(query, location string) string {
	term := strings.TrimSpace(query)
	if location = strings.TrimSpace(location); location != "" {
		term = term + " " + location
	}
	return searchBaseURL + url.QueryEscape(term)
}

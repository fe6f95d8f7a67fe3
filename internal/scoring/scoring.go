// Package scoring ranks scraped businesses by how promising they are as
// leads: contact completeness, website quality, social presence and profile
// completeness.
package scoring

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"

	"github.com/octobees/leads-generator/scraper/internal/entity"
)

const (
	categoryContact = "contact_completeness"
	categoryWebsite = "website_quality"
	categorySocial  = "social_presence"
	categoryProfile = "business_profile"

	// Tier thresholds on the 0-100 total.
	tierHighMin   = 70
	tierMediumMin = 40

	TierHigh   = "HIGH"
	TierMedium = "MEDIUM"
	TierLow    = "LOW"
)

var freeHostingDomains = []string{
	"wordpress.com",
	"blogspot.com",
	"wixsite.com",
	"weebly.com",
	"squarespace.com",
	"medium.com",
	"substack.com",
	"godaddysites.com",
	"notion.site",
	"googlepages.com",
}

// Score evaluates a scraped business and returns its lead score with the
// per-category breakdown and the list of enrichable fields still missing.
func Score(b *entity.Business) entity.LeadScore {
	if b == nil {
		return entity.LeadScore{Tier: TierLow, Breakdown: map[string]int{}}
	}

	breakdown := map[string]int{
		categoryContact: scoreContactCompleteness(b),
		categoryWebsite: scoreWebsiteQuality(b),
		categorySocial:  scoreSocialPresence(b),
		categoryProfile: scoreBusinessProfile(b),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return entity.LeadScore{
		Total:         total,
		Tier:          tierFor(total),
		Breakdown:     breakdown,
		MissingFields: missingFields(b),
	}
}

func tierFor(total int) string {
	switch {
	case total >= tierHighMin:
		return TierHigh
	case total >= tierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}

func missingFields(b *entity.Business) []string {
	flags := b.Completeness()
	var missing []string
	if !flags.HasPhone {
		missing = append(missing, "phone")
	}
	if !flags.HasWebsite {
		missing = append(missing, "website")
	}
	if !flags.HasHours {
		missing = append(missing, "hours")
	}
	if !flags.HasRating {
		missing = append(missing, "rating")
	}
	if !flags.HasReviews {
		missing = append(missing, "reviews")
	}
	if !flags.HasServices {
		missing = append(missing, "services")
	}
	return missing
}

func scoreContactCompleteness(b *entity.Business) int {
	score := 0
	phones := b.Phones()
	if len(phones) > 0 {
		score += 10
		if anyParseablePhone(phones) {
			score += 5
		}
	}
	if b.Website != nil && strings.TrimSpace(*b.Website) != "" {
		score += 10
	}
	if b.Address != nil && strings.TrimSpace(*b.Address) != "" {
		score += 5
	}
	if score > 30 {
		return 30
	}
	return score
}

// anyParseablePhone treats international parseability as a quality signal
// only; it never gates storage.
func anyParseablePhone(phones []string) bool {
	for _, phone := range phones {
		if !strings.HasPrefix(phone, "+") {
			continue
		}
		parsed, err := phonenumbers.Parse(phone, "ZZ")
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return true
		}
	}
	return false
}

func scoreWebsiteQuality(b *entity.Business) int {
	if b.Website == nil {
		return 0
	}
	site := strings.ToLower(strings.TrimSpace(*b.Website))
	if site == "" {
		return 0
	}

	score := 10
	if strings.HasPrefix(site, "https://") {
		score += 10
	}
	if highQualityDomain(site) {
		score += 10
	}
	if score > 30 {
		return 30
	}
	return score
}

func scoreSocialPresence(b *entity.Business) int {
	if len(b.Socials) == 0 {
		return 0
	}

	score := 0
	for _, platform := range []string{"linkedin", "instagram", "facebook", "twitter"} {
		if b.Socials[platform] != "" {
			score += 5
		}
	}
	if score > 20 {
		return 20
	}
	return score
}

func scoreBusinessProfile(b *entity.Business) int {
	score := 0
	if b.Address != nil && hasCompleteAddress(*b.Address) {
		score += 5
	}
	if b.Rating != nil && *b.Rating >= 4.0 {
		score += 5
	}
	if b.Reviews != nil && *b.Reviews >= 10 {
		score += 5
	}
	if b.Hours != nil && strings.TrimSpace(*b.Hours) != "" {
		score += 5
	}
	if score > 20 {
		return 20
	}
	return score
}

func hasCompleteAddress(raw string) bool {
	addr := strings.TrimSpace(raw)
	if len(addr) < 10 {
		return false
	}
	var hasLetter, hasDigit bool
	separatorCount := 0
	for _, r := range addr {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == ',':
			separatorCount++
		}
	}
	return hasLetter && hasDigit && separatorCount >= 1
}

func highQualityDomain(raw string) bool {
	domain := extractDomain(raw)
	if domain == "" {
		return false
	}
	for _, bad := range freeHostingDomains {
		if domain == bad || strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return strings.Count(domain, ".") >= 1
}

func extractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	host := strings.TrimSpace(strings.ToLower(parsed.Host))
	host = strings.TrimPrefix(host, "www.")
	return host
}

package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/leads-generator/scraper/internal/entity"
)

var websiteSelectors = []string{
	"a[data-item-id='authority']",
	"a[href^='http'][aria-label*='Website']",
	"a.CsEnBe[href^='http']",
}

var detailPhoneSelectors = []string{
	"button[data-item-id*='phone']",
	"a[href^='tel:']",
	"[data-item-id*='phone']",
	"span.UsdlK",
}

var hoursSelectors = []string{
	"div[aria-label*='Hours']",
	"div.t39EBf",
	"table.eK4R0e",
}

var detailCategorySelectors = []string{
	"button.DkEaL",
	"span.DkEaL",
	"button[jsaction*='category']",
}

var serviceSelectors = []string{
	"div[aria-label*='Amenities'] span",
	"div[aria-label*='Offerings'] span",
	"div.LTs0Rc",
}

const priceLevelSelector = "span[aria-label*='Price']"

// socialHostPatterns maps each supported platform to its host pattern; the
// first matching link per platform is kept.
var socialHostPatterns = []struct {
	platform string
	pattern  *regexp.Regexp
}{
	{"facebook", regexp.MustCompile(`(?i)(^|\.)facebook\.com$`)},
	{"twitter", regexp.MustCompile(`(?i)(^|\.)(twitter|x)\.com$`)},
	{"instagram", regexp.MustCompile(`(?i)(^|\.)instagram\.com$`)},
	{"linkedin", regexp.MustCompile(`(?i)(^|\.)linkedin\.com$`)},
}

// ParseDetail extracts enrichment fields from a business detail page. Every
// field is independent: a missing or drifted selector nulls that field only.
func (e *Extractor) ParseDetail(html string) (*entity.Business, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	detail := &entity.Business{}

	if website := e.extractWebsite(doc); website != "" {
		detail.Website = &website
	}
	if phone := e.extractPhones(doc); phone != "" {
		detail.Phone = &phone
	}
	if hours := extractHours(doc); hours != "" {
		detail.Hours = &hours
	}
	if category := firstText(doc.Selection, detailCategorySelectors); category != "" {
		detail.Category = &category
	}
	detail.Services = extractServices(doc)
	detail.Socials = extractSocials(doc)
	if price := strings.TrimSpace(doc.Find(priceLevelSelector).First().Text()); price != "" {
		detail.PriceLevel = &price
	} else if label, ok := doc.Find(priceLevelSelector).First().Attr("aria-label"); ok {
		if label = strings.TrimSpace(label); label != "" {
			detail.PriceLevel = &label
		}
	}

	return detail, nil
}

// extractWebsite prefers the authority link, then falls back to the first
// outbound http(s) link in the main info panel. Links on the source map
// domain are never websites.
func (e *Extractor) extractWebsite(doc *goquery.Document) string {
	for _, selector := range websiteSelectors {
		href, ok := doc.Find(selector).First().Attr("href")
		if ok && href != "" && !isSourceDomain(href) {
			return href
		}
	}

	website := ""
	doc.Find("div[role='main'] a[href^='http']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href != "" && !isSourceDomain(href) {
			website = href
			return false
		}
		return true
	})
	return website
}

// extractPhones collects candidates from all phone nodes, preferring the
// accessible label over visible text, normalizes and dedupes them, and joins
// multiple valid numbers with the pipe separator.
func (e *Extractor) extractPhones(doc *goquery.Document) string {
	seen := make(map[string]struct{})
	var phones []string

	collect := func(raw string) {
		normalized := e.phones.Normalize(raw)
		if normalized == "" {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		phones = append(phones, normalized)
	}

	for _, selector := range detailPhoneSelectors {
		doc.Find(selector).Each(func(_ int, el *goquery.Selection) {
			if label, ok := el.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
				collect(label)
				return
			}
			if href, ok := el.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
				collect(strings.TrimPrefix(href, "tel:"))
				return
			}
			collect(el.Text())
		})
	}

	return strings.Join(phones, entity.PhoneSeparator)
}

// extractHours returns the first sufficiently long text match.
func extractHours(doc *goquery.Document) string {
	for _, selector := range hoursSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if len(text) > 5 {
			return text
		}
	}
	return ""
}

// extractServices gathers amenity entries, deduplicated in insertion order.
func extractServices(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var services []string
	for _, selector := range serviceSelectors {
		doc.Find(selector).Each(func(_ int, el *goquery.Selection) {
			text := textOrLabel(el)
			if text == "" {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			services = append(services, text)
		})
	}
	return services
}

// extractSocials keeps the first link per supported platform.
func extractSocials(doc *goquery.Document) map[string]string {
	socials := make(map[string]string)
	doc.Find("a[href^='http']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		parsed, err := url.Parse(href)
		if err != nil || parsed.Hostname() == "" {
			return
		}
		host := parsed.Hostname()
		for _, candidate := range socialHostPatterns {
			if _, exists := socials[candidate.platform]; exists {
				continue
			}
			if candidate.pattern.MatchString(host) {
				socials[candidate.platform] = href
			}
		}
	})
	if len(socials) == 0 {
		return nil
	}
	return socials
}

// isSourceDomain reports whether the link points back at the map service.
func isSourceDomain(href string) bool {
	parsed, err := url.Parse(href)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "google.com" || strings.HasSuffix(host, ".google.com")
}

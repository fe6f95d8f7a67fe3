package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/leads-generator/scraper/internal/entity"
)

// mapsOrigin prefixes root-relative detail links found on the search page.
const mapsOrigin = "https://www.google.com"

// Card container patterns, in priority order. The first pattern yielding any
// match wins; patterns are never unioned because mixed DOM variants carry
// inconsistent field sets.
var cardSelectors = []string{
	"div.Nv2PK",
	"div[role='article']",
	"div.section-result",
	"a.hfpxzc",
}

var (
	nameSelectors = []string{
		"div.qBF1Pd",
		"div.fontHeadlineSmall",
		"span.OSrXXb",
		"[aria-label][role='link']",
	}
	addressSelectors = []string{
		"div.W4Efsd:nth-of-type(2)",
		"span.W4Efsd",
		"div.W4Efsd > span",
	}
	ratingSelectors = []string{
		"span.MW4etd",
		"span[role='img'][aria-label*='stars']",
		"div.fontBodyMedium span",
	}
	reviewSelectors = []string{
		"span.UY7F9",
		"span[aria-label*='reviews']",
		"span.fontBodyMedium span:nth-of-type(2)",
	}
	listingPhoneSelectors = []string{
		"span.UsdlK",
		"[data-item-id*='phone']",
	}
	listingCategorySelectors = []string{
		"span.W4Efsd:first-of-type",
		"div.W4Efsd > span:first-child",
	}
)

var (
	ratingPattern    = regexp.MustCompile(`\d+\.?\d*`)
	nonDigitPattern  = regexp.MustCompile(`\D`)
	placeHrefPattern = regexp.MustCompile(`/maps/place/`)
)

// Extractor parses listing and detail HTML into business records. Every field
// goes through its own ordered fallback selector list so that a single markup
// drift does not blank the whole record.
type Extractor struct {
	phones *PhoneNormalizer
}

// NewExtractor wires the extractor with its phone normalizer.
func NewExtractor(phones *PhoneNormalizer) *Extractor {
	return &Extractor{phones: phones}
}

// ParseListing extracts business cards from search-results HTML. Cards with
// neither a name nor a resolvable detail URL are dropped silently.
func (e *Extractor) ParseListing(html string) ([]*entity.Business, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var cards *goquery.Selection
	for _, selector := range cardSelectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			cards = found
			break
		}
	}
	if cards == nil {
		return nil, nil
	}

	var results []*entity.Business
	cards.Each(func(_ int, card *goquery.Selection) {
		if b := e.parseCard(card); b != nil {
			results = append(results, b)
		}
	})
	return results, nil
}

func (e *Extractor) parseCard(card *goquery.Selection) *entity.Business {
	name := firstText(card, nameSelectors)
	mapsURL := resolvePlaceURL(card)
	if name == "" && mapsURL == "" {
		return nil
	}

	b := &entity.Business{Name: name}
	if mapsURL != "" {
		b.GoogleMapsURL = &mapsURL
	}
	if address := firstText(card, addressSelectors); address != "" {
		b.Address = &address
	}
	if rating := firstRating(card); rating != nil {
		b.Rating = rating
	}
	if reviews := firstReviews(card); reviews != nil {
		b.Reviews = reviews
	}
	if phone := e.phones.Normalize(firstText(card, listingPhoneSelectors)); phone != "" {
		b.Phone = &phone
	}
	if category := firstCategory(card, b.Address); category != "" {
		b.Category = &category
	}
	return b
}

// firstText returns the first non-empty text among the selectors, falling
// back to the aria-label attribute when an element carries no visible text.
func firstText(scope *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		el := scope.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
		if label, ok := el.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
			return strings.TrimSpace(label)
		}
	}
	return ""
}

func firstRating(card *goquery.Selection) *float64 {
	for _, selector := range ratingSelectors {
		el := card.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if rating := parseRating(textOrLabel(el)); rating != nil {
			return rating
		}
	}
	return nil
}

func firstReviews(card *goquery.Selection) *int {
	for _, selector := range reviewSelectors {
		el := card.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if reviews := parseReviews(textOrLabel(el)); reviews != nil {
			return reviews
		}
	}
	return nil
}

func firstCategory(card *goquery.Selection, address *string) string {
	for _, selector := range listingCategorySelectors {
		el := card.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		category := strings.TrimSpace(el.Text())
		if category == "" {
			continue
		}
		// The category and address share container classes on some variants.
		if address != nil && category == *address {
			continue
		}
		return category
	}
	return ""
}

// parseRating extracts the first decimal-number token; unparsable text maps
// to nil, never an error.
func parseRating(text string) *float64 {
	match := ratingPattern.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &value
}

// parseReviews strips all non-digits and parses the remainder.
func parseReviews(text string) *int {
	digits := nonDigitPattern.ReplaceAllString(text, "")
	if digits == "" {
		return nil
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &value
}

// resolvePlaceURL finds an anchor pointing at a place path. Absolute hrefs
// are kept verbatim; root-relative hrefs get the maps origin prefixed.
func resolvePlaceURL(card *goquery.Selection) string {
	href := ""
	if link, ok := card.Attr("href"); ok && placeHrefPattern.MatchString(link) {
		href = link
	} else {
		card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			link, _ := a.Attr("href")
			if placeHrefPattern.MatchString(link) {
				href = link
				return false
			}
			return true
		})
	}

	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return mapsOrigin + href
	default:
		return ""
	}
}

func textOrLabel(el *goquery.Selection) string {
	if text := strings.TrimSpace(el.Text()); text != "" {
		return text
	}
	label, _ := el.Attr("aria-label")
	return strings.TrimSpace(label)
}

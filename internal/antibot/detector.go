package antibot

import (
	"context"
	"strings"

	"github.com/octobees/leads-generator/scraper/internal/browser"
)

// Structural CAPTCHA markers checked before the phrase scan.
const (
	recaptchaIframeSelector = "iframe[src*='recaptcha'], iframe[title*='recaptcha']"
	captchaFormSelector     = "form#captcha-form, form[action*='sorry'], form[action*='CaptchaRedirect']"
)

// blockIndicators are scanned case-insensitively over the full rendered HTML.
var blockIndicators = []string{
	"unusual traffic",
	"captcha",
	"sorry",
	"automated requests",
	"verify you're not a robot",
	"our systems have detected",
	"please verify",
}

// Detector inspects rendered page state for anti-bot signals. It is
// best-effort: false negatives are expected as the target's markup drifts.
// The detector never touches statistics; callers count encounters.
type Detector struct{}

// NewDetector returns a block/CAPTCHA detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Blocked checks, short-circuiting on first match: a reCAPTCHA iframe, a
// CAPTCHA-redirect form, then the indicator phrase scan.
func (d *Detector) Blocked(ctx context.Context, page browser.Page) (bool, error) {
	if found, err := page.HasSelector(ctx, recaptchaIframeSelector); err != nil {
		return false, err
	} else if found {
		return true, nil
	}

	if found, err := page.HasSelector(ctx, captchaFormSelector); err != nil {
		return false, err
	} else if found {
		return true, nil
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return false, err
	}
	return ContainsBlockIndicator(html), nil
}

// ContainsBlockIndicator scans markup for any known blocking phrase.
func ContainsBlockIndicator(html string) bool {
	lowered := strings.ToLower(html)
	for _, indicator := range blockIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

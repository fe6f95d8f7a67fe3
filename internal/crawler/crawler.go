package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/octobees/leads-generator/scraper/internal/antibot"
	"github.com/octobees/leads-generator/scraper/internal/browser"
	"github.com/octobees/leads-generator/scraper/internal/extract"
	"github.com/octobees/leads-generator/scraper/internal/repository"
)

// ErrSessionBlocked signals that the search results page itself tripped the
// anti-bot wall. The session is not retried internally; the caller owns
// top-level retry with its own backoff.
var ErrSessionBlocked = errors.New("search results page blocked")

const (
	// consentSelector dismisses the cookie wall shown to fresh sessions.
	consentSelector = "button[aria-label*='Accept'], button[aria-label*='Agree'], form[action*='consent'] button"

	// listingReadySelectors signal that results content has rendered.
	listingReadySelectors = "div[role='feed'], div.Nv2PK, a.hfpxzc"

	listingReadyTimeout = 5 * time.Second
	maxScrolls          = 8
	scrollPauseMin      = 500 * time.Millisecond
	scrollPauseMax      = time.Second
)

// Crawler orchestrates one session: search page load, feed scroll, listing
// extraction, per-business enrichment and persistence.
type Crawler struct {
	driver   browser.Driver
	limiter  *antibot.RateLimiter
	detector *antibot.Detector

	extractor *extract.Extractor
	enricher  *Enricher
	repo      repository.BusinessesRepository
	log       *logrus.Entry

	scrollPause *antibot.RateLimiter
}

// New assembles a crawler around an already-started browser driver.
func New(
	driver browser.Driver,
	limiter *antibot.RateLimiter,
	detector *antibot.Detector,
	extractor *extract.Extractor,
	enricher *Enricher,
	repo repository.BusinessesRepository,
	log *logrus.Entry,
) *Crawler {
	return &Crawler{
		driver:      driver,
		limiter:     limiter,
		detector:    detector,
		extractor:   extractor,
		enricher:    enricher,
		repo:        repo,
		log:         log,
		scrollPause: antibot.NewRateLimiter(scrollPauseMin, scrollPauseMax),
	}
}

// Run executes one crawl session and always returns the statistics gathered
// so far; only whole-session failures carry a non-nil error alongside them.
func (c *Crawler) Run(ctx context.Context, req Request) (*Stats, error) {
	stats := &Stats{}
	if err := req.Validate(); err != nil {
		return stats, err
	}
	stats.Query = req.Query
	stats.Location = req.Location

	runID := uuid.New()
	log := c.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"query":    req.Query,
		"location": req.Location,
	})

	searchURL := BuildSearchURL(req.Query, req.Location)
	log.WithField("url", searchURL).Info("loading search results")

	page, err := c.driver.Open(ctx, searchURL)
	if err != nil {
		return stats, fmt.Errorf("open search page: %w", err)
	}
	defer page.Close()

	// Fresh sessions hit a cookie wall before any results render.
	_ = page.Click(ctx, consentSelector)
	_ = page.WaitSelector(ctx, listingReadySelectors, listingReadyTimeout)

	blocked, err := c.detector.Blocked(ctx, page)
	if err != nil {
		return stats, fmt.Errorf("inspect search page: %w", err)
	}
	if blocked {
		stats.CaptchaEncounters++
		log.Warn("search results page blocked, aborting session")
		return stats, ErrSessionBlocked
	}

	if err := c.scrollResults(ctx, page); err != nil {
		return stats, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return stats, fmt.Errorf("read results markup: %w", err)
	}

	records, err := c.extractor.ParseListing(html)
	if err != nil {
		return stats, fmt.Errorf("parse listing: %w", err)
	}
	log.WithField("cards", len(records)).Info("listing extracted")

	for _, record := range records {
		if stats.ResultsCount >= req.MaxResults {
			break
		}
		stats.TotalAttempted++
		record.ScrapeRunID = &runID

		if record.GoogleMapsURL != nil && *record.GoogleMapsURL != "" {
			exists, err := c.repo.ExistsByURL(ctx, *record.GoogleMapsURL)
			if err != nil {
				log.WithError(err).Warn("dedup check failed")
			} else if exists {
				log.WithField("business", record.Name).Debug("already stored, skipping")
				continue
			}
		}

		if record.Complete() {
			if err := persistRecord(ctx, c.repo, log, record); err == nil {
				stats.ResultsCount++
				stats.TotalSuccessful++
			}
		} else if c.enricher.Enrich(ctx, record, stats) {
			stats.ResultsCount++
			stats.TotalSuccessful++
		} else {
			// Enrichment failure is non-fatal: keep the listing-only fields.
			if err := persistRecord(ctx, c.repo, log, record); err == nil {
				stats.ResultsCount++
				stats.TotalSuccessful++
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("session cancelled between cards")
			return stats, nil
		}
	}

	log.WithFields(logrus.Fields{
		"results":   stats.ResultsCount,
		"attempted": stats.TotalAttempted,
		"captchas":  stats.CaptchaEncounters,
	}).Info("session finished")
	return stats, nil
}

// scrollResults advances the feed in bounded increments, stopping early once
// the scroll position no longer moves.
func (c *Crawler) scrollResults(ctx context.Context, page browser.Page) error {
	for i := 0; i < maxScrolls; i++ {
		advanced, err := page.ScrollFeed(ctx)
		if err != nil {
			return fmt.Errorf("scroll results feed: %w", err)
		}
		if !advanced {
			break
		}
		if err := antibot.Sleep(ctx, c.scrollPause.Delay()); err != nil {
			return err
		}
	}
	return nil
}

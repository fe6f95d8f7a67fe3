package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/leads-generator/scraper/internal/antibot"
	"github.com/octobees/leads-generator/scraper/internal/browser"
	"github.com/octobees/leads-generator/scraper/internal/entity"
	"github.com/octobees/leads-generator/scraper/internal/extract"
	"github.com/octobees/leads-generator/scraper/internal/repository"
	"github.com/octobees/leads-generator/scraper/internal/scoring"
)

const (
	defaultDetailTimeout = 20 * time.Second
	defaultMaxAttempts   = 3
	defaultBackoffUnit   = 2 * time.Second

	contentReadyTimeout = 5 * time.Second
)

// detailReadySelectors are probed best-effort after navigation; extraction
// proceeds whether or not one matched.
const detailReadySelectors = "h1, div[role='main'], button[data-item-id]"

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeBlocked
	outcomeTimedOut
	outcomeFailed
)

// Enricher visits one business's detail page in an isolated tab, merging
// extracted fields into the record and persisting it. Attempts are bounded;
// blocks and timeouts share one recovery path of rotation plus linear
// backoff, differing only in which counter they bump.
type Enricher struct {
	driver    browser.Driver
	rotation  *antibot.Rotation
	limiter   *antibot.RateLimiter
	detector  *antibot.Detector
	extractor *extract.Extractor
	repo      repository.BusinessesRepository
	log       *logrus.Entry

	maxAttempts   int
	detailTimeout time.Duration
	backoffUnit   time.Duration

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// EnricherOptions tunes the retry machine; zero values pick the defaults.
type EnricherOptions struct {
	MaxAttempts   int
	DetailTimeout time.Duration
	BackoffUnit   time.Duration
}

// NewEnricher assembles a detail-page enricher.
func NewEnricher(
	driver browser.Driver,
	rotation *antibot.Rotation,
	limiter *antibot.RateLimiter,
	detector *antibot.Detector,
	extractor *extract.Extractor,
	repo repository.BusinessesRepository,
	log *logrus.Entry,
	opts EnricherOptions,
) *Enricher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = defaultDetailTimeout
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = defaultBackoffUnit
	}
	return &Enricher{
		driver:        driver,
		rotation:      rotation,
		limiter:       limiter,
		detector:      detector,
		extractor:     extractor,
		repo:          repo,
		log:           log,
		maxAttempts:   opts.MaxAttempts,
		detailTimeout: opts.DetailTimeout,
		backoffUnit:   opts.BackoffUnit,
		sleep:         antibot.Sleep,
	}
}

// Enrich mutates the record in place with detail-page fields and persists it
// on success. It returns whether enrichment succeeded; exhausting every
// attempt is non-fatal and the caller still saves the listing-only fields.
func (e *Enricher) Enrich(ctx context.Context, record *entity.Business, stats *Stats) bool {
	if record.GoogleMapsURL == nil || *record.GoogleMapsURL == "" {
		return false
	}
	url := *record.GoogleMapsURL
	log := e.log.WithField("business", record.Name)

	if err := e.limiter.Wait(ctx); err != nil {
		return false
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		outcome := e.attempt(ctx, url, record)
		switch outcome {
		case outcomeSuccess:
			if err := persistRecord(ctx, e.repo, log, record); err != nil {
				stats.DetailFailures++
				return false
			}
			stats.DetailSuccesses++
			return true
		case outcomeBlocked:
			stats.CaptchaEncounters++
			log.WithField("attempt", attempt).Warn("detail page blocked")
		case outcomeTimedOut:
			log.WithField("attempt", attempt).Warn("detail navigation timed out")
		default:
			log.WithField("attempt", attempt).Warn("detail attempt failed")
		}

		if attempt < e.maxAttempts {
			e.rotation.NextProxy()
			backoff := time.Duration(attempt) * e.backoffUnit
			if err := e.sleep(ctx, backoff); err != nil {
				break
			}
		}
	}

	stats.DetailFailures++
	return false
}

// attempt runs one isolated detail-page visit. The tab is closed on every
// exit path.
func (e *Enricher) attempt(ctx context.Context, url string, record *entity.Business) attemptOutcome {
	tab, err := e.driver.NewTab(ctx, browser.TabOptions{UserAgent: e.rotation.NextUserAgent()})
	if err != nil {
		return outcomeFailed
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, url, e.detailTimeout); err != nil {
		if errors.Is(err, browser.ErrNavigationTimeout) {
			return outcomeTimedOut
		}
		return outcomeFailed
	}

	blocked, err := e.detector.Blocked(ctx, tab)
	if err != nil {
		return outcomeFailed
	}
	if blocked {
		return outcomeBlocked
	}

	// Best-effort readiness probe; extraction runs regardless.
	_ = tab.WaitSelector(ctx, detailReadySelectors, contentReadyTimeout)

	html, err := tab.HTML(ctx)
	if err != nil {
		return outcomeFailed
	}

	partial, err := e.extractor.ParseDetail(html)
	if err != nil {
		return outcomeFailed
	}
	record.Merge(partial)
	return outcomeSuccess
}

// persistRecord scores and saves one business. An identity-less record is
// dropped with a warning and never retried.
func persistRecord(ctx context.Context, repo repository.BusinessesRepository, log *logrus.Entry, record *entity.Business) error {
	score := scoring.Score(record)
	record.LeadScore = &score

	created, err := repo.Save(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrIdentitylessRecord) {
			log.Warn("dropping record without url or phone identity")
			return err
		}
		log.WithError(err).Error("save business failed")
		return err
	}

	if created {
		log.Debug("business created")
	} else {
		log.Debug("business updated")
	}
	return nil
}

package crawler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/leads-generator/scraper/internal/antibot"
	"github.com/octobees/leads-generator/scraper/internal/browser"
	"github.com/octobees/leads-generator/scraper/internal/entity"
	"github.com/octobees/leads-generator/scraper/internal/extract"
	"github.com/octobees/leads-generator/scraper/internal/repository"
)

type fakePage struct {
	html            string
	selectors       map[string]bool
	navigateErr     error
	scrollRemaining int
	closed          int
}

func (p *fakePage) Navigate(_ context.Context, _ string, _ time.Duration) error {
	return p.navigateErr
}

func (p *fakePage) HTML(_ context.Context) (string, error) { return p.html, nil }

func (p *fakePage) HasSelector(_ context.Context, selector string) (bool, error) {
	return p.selectors[selector], nil
}

func (p *fakePage) WaitSelector(_ context.Context, _ string, _ time.Duration) error { return nil }

func (p *fakePage) ScrollFeed(_ context.Context) (bool, error) {
	if p.scrollRemaining > 0 {
		p.scrollRemaining--
		return true, nil
	}
	return false, nil
}

func (p *fakePage) Click(_ context.Context, _ string) error { return nil }

func (p *fakePage) Close() error {
	p.closed++
	return nil
}

type fakeDriver struct {
	openPage   *fakePage
	openErr    error
	tabs       []*fakePage
	tabIdx     int
	userAgents []string
}

func (d *fakeDriver) Open(_ context.Context, _ string) (browser.Page, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.openPage, nil
}

func (d *fakeDriver) NewTab(_ context.Context, opts browser.TabOptions) (browser.Page, error) {
	d.userAgents = append(d.userAgents, opts.UserAgent)
	if d.tabIdx >= len(d.tabs) {
		return nil, errors.New("no tabs left in fixture")
	}
	tab := d.tabs[d.tabIdx]
	d.tabIdx++
	return tab, nil
}

func (d *fakeDriver) Close() error { return nil }

type fakeRepo struct {
	existing map[string]bool
	saved    []*entity.Business
	saveErr  error
}

func (r *fakeRepo) Save(_ context.Context, b *entity.Business) (bool, error) {
	if r.saveErr != nil {
		return false, r.saveErr
	}
	hasURL := b.GoogleMapsURL != nil && *b.GoogleMapsURL != ""
	hasPhone := b.Phone != nil && *b.Phone != ""
	if !hasURL && !hasPhone {
		return false, repository.ErrIdentitylessRecord
	}
	copied := *b
	r.saved = append(r.saved, &copied)
	return true, nil
}

func (r *fakeRepo) ExistsByURL(_ context.Context, url string) (bool, error) {
	return r.existing[url], nil
}

func (r *fakeRepo) List(_ context.Context, _, _ int) ([]entity.Business, error) { return nil, nil }

func (r *fakeRepo) Search(_ context.Context, _ repository.SearchFilter) ([]entity.Business, error) {
	return nil, nil
}

func (r *fakeRepo) Count(_ context.Context) (int, error) { return len(r.saved), nil }

func (r *fakeRepo) DistinctCategories(_ context.Context) ([]string, error) { return nil, nil }

const detailPageHTML = `<html><body><div role="main">
<h1>Acme Plumbing</h1>
<a data-item-id="authority" href="https://acmeplumbing.com">acmeplumbing.com</a>
<button data-item-id="phone:tel:+15125550123" aria-label="Phone: +1 512-555-0123">Call</button>
<button class="DkEaL">Plumber</button>
<div aria-label="Hours Monday 8AM to 6PM">Monday 8AM to 6PM</div>
</div></body></html>`

const blockedPageHTML = `<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestEnricher(t *testing.T, driver browser.Driver, repo repository.BusinessesRepository) (*Enricher, *[]time.Duration) {
	t.Helper()
	normalizer, err := extract.NewPhoneNormalizer(extract.DefaultPhoneStripPattern)
	if err != nil {
		t.Fatalf("build normalizer: %v", err)
	}
	e := NewEnricher(
		driver,
		antibot.NewRotation(nil, []string{"ua1", "ua2", "ua3"}),
		antibot.NewRateLimiter(0, 0),
		antibot.NewDetector(),
		extract.NewExtractor(normalizer),
		repo,
		testLog(),
		EnricherOptions{},
	)
	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return e, &sleeps
}

func urlPtr() *string {
	url := "https://www.google.com/maps/place/acme-plumbing"
	return &url
}

func TestEnricher_SuccessOnFirstAttempt(t *testing.T) {
	tab := &fakePage{html: detailPageHTML}
	driver := &fakeDriver{tabs: []*fakePage{tab}}
	repo := &fakeRepo{}
	e, sleeps := newTestEnricher(t, driver, repo)

	record := &entity.Business{Name: "Acme Plumbing", GoogleMapsURL: urlPtr()}
	stats := &Stats{}

	if !e.Enrich(context.Background(), record, stats) {
		t.Fatalf("expected enrichment success")
	}
	if stats.DetailSuccesses != 1 || stats.DetailFailures != 0 || stats.CaptchaEncounters != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no backoff on first-attempt success, got %v", *sleeps)
	}
	if tab.closed != 1 {
		t.Fatalf("expected tab closed exactly once, got %d", tab.closed)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(repo.saved))
	}
	if record.Website == nil || *record.Website != "https://acmeplumbing.com" {
		t.Fatalf("expected merged website, got %+v", record.Website)
	}
	if record.Phone == nil || *record.Phone != "+15125550123" {
		t.Fatalf("expected merged phone, got %+v", record.Phone)
	}
	if record.Category == nil || *record.Category != "Plumber" {
		t.Fatalf("expected merged category, got %+v", record.Category)
	}
	if record.LeadScore == nil {
		t.Fatalf("expected lead score attached on save")
	}
}

func TestEnricher_BlockedAttemptsRotateAndBackOff(t *testing.T) {
	tabs := []*fakePage{
		{html: blockedPageHTML},
		{html: blockedPageHTML},
		{html: detailPageHTML},
	}
	driver := &fakeDriver{tabs: tabs}
	repo := &fakeRepo{}
	e, sleeps := newTestEnricher(t, driver, repo)

	record := &entity.Business{Name: "Acme Plumbing", GoogleMapsURL: urlPtr()}
	stats := &Stats{}

	if !e.Enrich(context.Background(), record, stats) {
		t.Fatalf("expected eventual success")
	}
	if stats.CaptchaEncounters != 2 {
		t.Fatalf("expected 2 captcha encounters, got %d", stats.CaptchaEncounters)
	}
	if stats.DetailSuccesses != 1 || stats.DetailFailures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d backoffs, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("expected backoff %v at attempt %d, got %v", d, i+1, (*sleeps)[i])
		}
	}

	if len(driver.userAgents) != 3 {
		t.Fatalf("expected a fresh user agent per attempt, got %v", driver.userAgents)
	}
	if driver.userAgents[0] == driver.userAgents[1] {
		t.Fatalf("expected rotated user agents, got %v", driver.userAgents)
	}
	for i, tab := range tabs {
		if tab.closed != 1 {
			t.Fatalf("expected tab %d closed once, got %d", i, tab.closed)
		}
	}
}

func TestEnricher_TimeoutsExhaustAttempts(t *testing.T) {
	tabs := []*fakePage{
		{navigateErr: browser.ErrNavigationTimeout},
		{navigateErr: browser.ErrNavigationTimeout},
		{navigateErr: browser.ErrNavigationTimeout},
	}
	driver := &fakeDriver{tabs: tabs}
	repo := &fakeRepo{}
	e, sleeps := newTestEnricher(t, driver, repo)

	record := &entity.Business{Name: "Acme Plumbing", GoogleMapsURL: urlPtr()}
	stats := &Stats{}

	if e.Enrich(context.Background(), record, stats) {
		t.Fatalf("expected enrichment failure")
	}
	if stats.DetailFailures != 1 {
		t.Fatalf("expected exactly one detail failure, got %d", stats.DetailFailures)
	}
	if stats.CaptchaEncounters != 0 || stats.DetailSuccesses != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 backoffs before exhaustion, got %v", *sleeps)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("expected no save on failure, got %d", len(repo.saved))
	}
	for i, tab := range tabs {
		if tab.closed != 1 {
			t.Fatalf("expected tab %d closed once, got %d", i, tab.closed)
		}
	}
}

func TestEnricher_NoDetailURLSkipsAttempts(t *testing.T) {
	driver := &fakeDriver{}
	repo := &fakeRepo{}
	e, sleeps := newTestEnricher(t, driver, repo)

	record := &entity.Business{Name: "Phone Only Diner"}
	stats := &Stats{}

	if e.Enrich(context.Background(), record, stats) {
		t.Fatalf("expected false for record without detail url")
	}
	if len(driver.userAgents) != 0 {
		t.Fatalf("expected no tab opened, got %d", len(driver.userAgents))
	}
	if stats.DetailFailures != 0 {
		t.Fatalf("expected no failure counted, got %d", stats.DetailFailures)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no backoff, got %v", *sleeps)
	}
}

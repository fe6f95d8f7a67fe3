package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/octobees/leads-generator/scraper/internal/antibot"
	"github.com/octobees/leads-generator/scraper/internal/browser"
	"github.com/octobees/leads-generator/scraper/internal/config"
	"github.com/octobees/leads-generator/scraper/internal/crawler"
	"github.com/octobees/leads-generator/scraper/internal/database"
	"github.com/octobees/leads-generator/scraper/internal/extract"
	"github.com/octobees/leads-generator/scraper/internal/repository"
)

func main() {
	query := flag.String("query", "", "search term, e.g. \"plumber\"")
	location := flag.String("location", "", "location to search around, e.g. \"austin tx\"")
	maxResults := flag.Int("max", 0, "maximum businesses to collect (default 20)")
	headless := flag.Bool("headless", true, "run the browser headless")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if !flagPassed("headless") {
		*headless = cfg.Headless
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer pool.Close()

	repo := repository.NewPGXBusinessesRepository(pool, cfg.UpsertOnInsert)

	rotation := antibot.NewRotation(
		antibot.LoadLines(cfg.ProxyListPath),
		antibot.LoadLines(cfg.UserAgentsPath),
	)
	limiter := antibot.NewRateLimiter(cfg.MinDelay, cfg.MaxDelay)
	if cfg.NavRateLimit.Requests > 0 {
		limiter = limiter.WithNavCap(cfg.NavRateLimit.Requests, cfg.NavRateLimit.Interval)
	}
	detector := antibot.NewDetector()

	stripPattern := cfg.PhoneStripPattern
	if stripPattern == "" {
		stripPattern = extract.DefaultPhoneStripPattern
	}
	normalizer, err := extract.NewPhoneNormalizer(stripPattern)
	if err != nil {
		log.WithError(err).Fatal("invalid phone strip pattern")
	}
	extractor := extract.NewExtractor(normalizer)

	driver, err := browser.NewChromeDriver(browser.Options{
		Headless:  *headless,
		Proxy:     rotation.NextProxy(),
		UserAgent: rotation.NextUserAgent(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to start browser")
	}
	defer driver.Close()

	entry := logrus.NewEntry(log)
	enricher := crawler.NewEnricher(driver, rotation, limiter, detector, extractor, repo, entry, crawler.EnricherOptions{
		MaxAttempts:   cfg.MaxDetailAttempts,
		DetailTimeout: cfg.DetailTimeout,
		BackoffUnit:   cfg.BackoffUnit,
	})
	c := crawler.New(driver, limiter, detector, extractor, enricher, repo, entry)

	stats, err := c.Run(ctx, crawler.Request{
		Query:      *query,
		Location:   *location,
		MaxResults: *maxResults,
		Headless:   *headless,
	})
	if err != nil && !errors.Is(err, crawler.ErrSessionBlocked) {
		log.WithError(err).Fatal("crawl session failed")
	}
	if errors.Is(err, crawler.ErrSessionBlocked) {
		log.Warn("session aborted: search results page blocked")
	}

	out, marshalErr := json.MarshalIndent(stats, "", "  ")
	if marshalErr != nil {
		log.WithError(marshalErr).Fatal("failed to render stats")
	}
	os.Stdout.Write(append(out, '\n'))

	if err != nil {
		os.Exit(1)
	}
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

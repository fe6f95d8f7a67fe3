package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PhoneSeparator joins multiple normalized phone numbers in a single field.
const PhoneSeparator = "|"

// Business represents a scraped business listing stored in the leads catalogue.
// The canonical Google Maps URL is the primary dedup key; the normalized phone
// is the fallback key for listings without a resolvable detail URL.
type Business struct {
	ID            uuid.UUID         `json:"id"`
	GoogleMapsURL *string           `json:"google_maps_url,omitempty"`
	ScrapeRunID   *uuid.UUID        `json:"scrape_run_id,omitempty"`
	Name          string            `json:"name"`
	Address       *string           `json:"address,omitempty"`
	Phone         *string           `json:"phone,omitempty"`
	Website       *string           `json:"website,omitempty"`
	Rating        *float64          `json:"rating,omitempty"`
	Reviews       *int              `json:"reviews,omitempty"`
	Category      *string           `json:"category,omitempty"`
	Hours         *string           `json:"hours,omitempty"`
	Services      []string          `json:"services,omitempty"`
	Socials       map[string]string `json:"socials,omitempty"`
	PriceLevel    *string           `json:"price_level,omitempty"`
	LeadScore     *LeadScore        `json:"lead_score,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LeadScore summarises how promising a business is as a lead.
type LeadScore struct {
	Total         int            `json:"total"`
	Tier          string         `json:"tier"`
	Breakdown     map[string]int `json:"breakdown"`
	MissingFields []string       `json:"missing_fields,omitempty"`
}

// CompletenessFlags reports which enrichable fields a record carries.
type CompletenessFlags struct {
	HasPhone    bool `json:"has_phone"`
	HasWebsite  bool `json:"has_website"`
	HasHours    bool `json:"has_hours"`
	HasRating   bool `json:"has_rating"`
	HasReviews  bool `json:"has_reviews"`
	HasServices bool `json:"has_services"`
}

// Merge copies fields from other into b additively. Set fields are never
// cleared: an empty incoming value leaves the existing one untouched.
// Non-empty incoming scalars win (the detail page is more reliable than the
// listing card, and its category overrides the card's guess). Services are
// unioned preserving insertion order; social links keep the first URL seen
// per platform.
func (b *Business) Merge(other *Business) {
	if other == nil {
		return
	}

	if other.Name != "" {
		b.Name = other.Name
	}
	if other.GoogleMapsURL != nil && *other.GoogleMapsURL != "" {
		b.GoogleMapsURL = other.GoogleMapsURL
	}
	if other.Address != nil && *other.Address != "" {
		b.Address = other.Address
	}
	if other.Phone != nil && *other.Phone != "" {
		b.Phone = other.Phone
	}
	if other.Website != nil && *other.Website != "" {
		b.Website = other.Website
	}
	if other.Rating != nil {
		b.Rating = other.Rating
	}
	if other.Reviews != nil {
		b.Reviews = other.Reviews
	}
	if other.Category != nil && *other.Category != "" {
		b.Category = other.Category
	}
	if other.Hours != nil && *other.Hours != "" {
		b.Hours = other.Hours
	}
	if other.PriceLevel != nil && *other.PriceLevel != "" {
		b.PriceLevel = other.PriceLevel
	}

	if len(other.Services) > 0 {
		seen := make(map[string]struct{}, len(b.Services)+len(other.Services))
		for _, svc := range b.Services {
			seen[svc] = struct{}{}
		}
		for _, svc := range other.Services {
			if _, dup := seen[svc]; dup {
				continue
			}
			seen[svc] = struct{}{}
			b.Services = append(b.Services, svc)
		}
	}

	if len(other.Socials) > 0 {
		if b.Socials == nil {
			b.Socials = make(map[string]string, len(other.Socials))
		}
		for platform, link := range other.Socials {
			if _, exists := b.Socials[platform]; !exists && link != "" {
				b.Socials[platform] = link
			}
		}
	}
}

// Complete reports whether the record needs no detail-page enrichment: a
// normalized phone with at least six digits and an http(s) website.
func (b *Business) Complete() bool {
	if b.Phone == nil || b.Website == nil {
		return false
	}
	if !strings.HasPrefix(*b.Website, "http") {
		return false
	}
	first, _, _ := strings.Cut(*b.Phone, PhoneSeparator)
	return countDigits(first) >= 6
}

// Completeness computes the per-field completeness flags.
func (b *Business) Completeness() CompletenessFlags {
	return CompletenessFlags{
		HasPhone:    b.Phone != nil && *b.Phone != "",
		HasWebsite:  b.Website != nil && *b.Website != "",
		HasHours:    b.Hours != nil && *b.Hours != "",
		HasRating:   b.Rating != nil,
		HasReviews:  b.Reviews != nil,
		HasServices: len(b.Services) > 0,
	}
}

// Phones splits the pipe-joined phone field into individual numbers.
func (b *Business) Phones() []string {
	if b.Phone == nil || *b.Phone == "" {
		return nil
	}
	return strings.Split(*b.Phone, PhoneSeparator)
}

func countDigits(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}

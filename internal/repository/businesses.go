package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-generator/scraper/internal/entity"
)

// pgxPool is the slice of *pgxpool.Pool the repository uses, kept small so
// tests can stub it.
type pgxPool interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// ErrIdentitylessRecord marks a business with neither a canonical Google Maps
// URL nor a usable phone. There is no dedup key to write under, so the record
// is dropped; retrying cannot fix a structural absence.
var ErrIdentitylessRecord = errors.New("business has neither url nor phone identity")

// SearchFilter narrows a businesses search. Text filters are case-insensitive
// substring matches; numeric filters are inclusive ranges; nil flag pointers
// mean "don't care".
type SearchFilter struct {
	Q          string
	Location   string
	Category   string
	MinRating  *float64
	MaxRating  *float64
	MinReviews *int
	HasPhone   *bool
	HasWebsite *bool
	HasHours   *bool
	Limit      int
	Offset     int
}

// BusinessesRepository describes persistence operations for scraped
// businesses.
type BusinessesRepository interface {
	Save(ctx context.Context, business *entity.Business) (bool, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]entity.Business, error)
	Search(ctx context.Context, filter SearchFilter) ([]entity.Business, error)
	Count(ctx context.Context) (int, error)
	DistinctCategories(ctx context.Context) ([]string, error)
}

// PGXBusinessesRepository implements BusinessesRepository using pgx.
type PGXBusinessesRepository struct {
	pool           pgxPool
	upsertOnInsert bool
}

// NewPGXBusinessesRepository wires a pgx backed repository. When
// upsertOnInsert is false, conflicting saves leave the stored record
// untouched instead of merging into it.
func NewPGXBusinessesRepository(pool *pgxpool.Pool, upsertOnInsert bool) *PGXBusinessesRepository {
	return &PGXBusinessesRepository{pool: pool, upsertOnInsert: upsertOnInsert}
}

const businessColumns = `
            google_maps_url,
            scrape_run_id,
            name,
            address,
            phone,
            website,
            rating,
            reviews,
            category,
            hours,
            services,
            socials,
            price_level,
            lead_score
`

// COALESCE on every nullable column keeps the merge additive: a field the
// incoming record did not extract never clears one a previous run stored.
// xmax = 0 distinguishes a fresh insert from a conflict-update.
const businessMergeClause = `
            scrape_run_id = COALESCE(EXCLUDED.scrape_run_id, businesses.scrape_run_id),
            name = COALESCE(NULLIF(EXCLUDED.name, ''), businesses.name),
            address = COALESCE(EXCLUDED.address, businesses.address),
            phone = COALESCE(EXCLUDED.phone, businesses.phone),
            website = COALESCE(EXCLUDED.website, businesses.website),
            rating = COALESCE(EXCLUDED.rating, businesses.rating),
            reviews = COALESCE(EXCLUDED.reviews, businesses.reviews),
            category = COALESCE(EXCLUDED.category, businesses.category),
            hours = COALESCE(EXCLUDED.hours, businesses.hours),
            services = COALESCE(EXCLUDED.services, businesses.services),
            socials = COALESCE(EXCLUDED.socials, businesses.socials),
            price_level = COALESCE(EXCLUDED.price_level, businesses.price_level),
            lead_score = COALESCE(EXCLUDED.lead_score, businesses.lead_score),
            updated_at = NOW()
        RETURNING xmax = 0;
`

var upsertByURLSQL = `
        INSERT INTO businesses (` + businessColumns + `, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14::jsonb, NOW())
        ON CONFLICT (google_maps_url) DO UPDATE SET` + businessMergeClause

var upsertByPhoneSQL = `
        INSERT INTO businesses (` + businessColumns + `, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14::jsonb, NOW())
        ON CONFLICT (phone) WHERE google_maps_url IS NULL DO UPDATE SET` + businessMergeClause

var insertOnlyByURLSQL = `
        INSERT INTO businesses (` + businessColumns + `, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14::jsonb, NOW())
        ON CONFLICT (google_maps_url) DO NOTHING
        RETURNING xmax = 0;
`

var insertOnlyByPhoneSQL = `
        INSERT INTO businesses (` + businessColumns + `, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14::jsonb, NOW())
        ON CONFLICT (phone) WHERE google_maps_url IS NULL DO NOTHING
        RETURNING xmax = 0;
`

// Save writes a business with one atomic dedup upsert keyed by canonical URL
// when present, else by normalized phone. It returns true when the record was
// newly created; a conflict-update is equally a success. A duplicate-key race
// that slips past ON CONFLICT is reported as an update, not an error.
func (r *PGXBusinessesRepository) Save(ctx context.Context, business *entity.Business) (bool, error) {
	if business == nil {
		return false, fmt.Errorf("business payload is nil")
	}

	hasURL := business.GoogleMapsURL != nil && *business.GoogleMapsURL != ""
	hasPhone := business.Phone != nil && *business.Phone != ""
	if !hasURL && !hasPhone {
		return false, ErrIdentitylessRecord
	}

	var socialsJSON any
	if len(business.Socials) > 0 {
		raw, err := json.Marshal(business.Socials)
		if err != nil {
			return false, fmt.Errorf("marshal socials: %w", err)
		}
		socialsJSON = string(raw)
	}

	var leadScoreJSON any
	if business.LeadScore != nil {
		raw, err := json.Marshal(business.LeadScore)
		if err != nil {
			return false, fmt.Errorf("marshal lead score: %w", err)
		}
		leadScoreJSON = string(raw)
	}

	query := upsertByURLSQL
	if !hasURL {
		query = upsertByPhoneSQL
	}
	if !r.upsertOnInsert {
		query = insertOnlyByURLSQL
		if !hasURL {
			query = insertOnlyByPhoneSQL
		}
	}

	var created bool
	err := r.pool.QueryRow(ctx, query,
		business.GoogleMapsURL,
		business.ScrapeRunID,
		business.Name,
		business.Address,
		business.Phone,
		business.Website,
		business.Rating,
		business.Reviews,
		business.Category,
		business.Hours,
		stringSliceOrNil(business.Services),
		socialsJSON,
		business.PriceLevel,
		leadScoreJSON,
	).Scan(&created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// DO NOTHING path: conflict, existing record kept.
			return false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("upsert business: %w", err)
	}

	return created, nil
}

// ExistsByURL reports whether a record is already stored under the URL.
func (r *PGXBusinessesRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM businesses WHERE google_maps_url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check business by url: %w", err)
	}
	return exists, nil
}

const selectBusinessSQL = `
        SELECT
            id,
            google_maps_url,
            scrape_run_id,
            name,
            address,
            phone,
            website,
            rating,
            reviews,
            category,
            hours,
            services,
            socials,
            price_level,
            lead_score,
            created_at,
            updated_at
        FROM businesses
`

// List returns stored businesses in creation order, newest first.
func (r *PGXBusinessesRepository) List(ctx context.Context, limit, offset int) ([]entity.Business, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, selectBusinessSQL+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

// Search retrieves businesses matching the filter, newest first.
func (r *PGXBusinessesRepository) Search(ctx context.Context, filter SearchFilter) ([]entity.Business, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Q != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Q)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR category ILIKE $%d)", idx, idx+1))
		args = append(args, pattern, pattern)
		idx += 2
	}
	if filter.Location != "" {
		clauses = append(clauses, fmt.Sprintf("address ILIKE $%d", idx))
		args = append(args, fmt.Sprintf("%%%s%%", filter.Location))
		idx++
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category ILIKE $%d", idx))
		args = append(args, fmt.Sprintf("%%%s%%", filter.Category))
		idx++
	}
	if filter.MinRating != nil {
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", idx))
		args = append(args, *filter.MinRating)
		idx++
	}
	if filter.MaxRating != nil {
		clauses = append(clauses, fmt.Sprintf("rating <= $%d", idx))
		args = append(args, *filter.MaxRating)
		idx++
	}
	if filter.MinReviews != nil {
		clauses = append(clauses, fmt.Sprintf("reviews >= $%d", idx))
		args = append(args, *filter.MinReviews)
		idx++
	}
	if filter.HasPhone != nil {
		clauses = append(clauses, flagClause("phone", *filter.HasPhone))
	}
	if filter.HasWebsite != nil {
		clauses = append(clauses, flagClause("website", *filter.HasWebsite))
	}
	if filter.HasHours != nil {
		clauses = append(clauses, flagClause("hours", *filter.HasHours))
	}

	query := strings.Builder{}
	query.WriteString(selectBusinessSQL)
	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search businesses: %w", err)
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

func flagClause(column string, present bool) string {
	if present {
		return column + " IS NOT NULL"
	}
	return column + " IS NULL"
}

// Count returns the total number of stored businesses.
func (r *PGXBusinessesRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM businesses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count businesses: %w", err)
	}
	return count, nil
}

// DistinctCategories lists every category present in storage.
func (r *PGXBusinessesRepository) DistinctCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM businesses WHERE category IS NOT NULL ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func scanBusinesses(rows pgx.Rows) ([]entity.Business, error) {
	var businesses []entity.Business
	for rows.Next() {
		var (
			b             entity.Business
			googleMapsURL sql.NullString
			scrapeRunID   sql.NullString
			address       sql.NullString
			phone         sql.NullString
			website       sql.NullString
			rating        sql.NullFloat64
			reviews       sql.NullInt64
			category      sql.NullString
			hours         sql.NullString
			services      []string
			socialsJSON   []byte
			priceLevel    sql.NullString
			leadScoreJSON []byte
		)

		err := rows.Scan(
			&b.ID,
			&googleMapsURL,
			&scrapeRunID,
			&b.Name,
			&address,
			&phone,
			&website,
			&rating,
			&reviews,
			&category,
			&hours,
			&services,
			&socialsJSON,
			&priceLevel,
			&leadScoreJSON,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}

		b.GoogleMapsURL = nullStringToPtr(googleMapsURL)
		if scrapeRunID.Valid {
			parsed, err := uuid.Parse(scrapeRunID.String)
			if err != nil {
				return nil, fmt.Errorf("parse scrape_run_id: %w", err)
			}
			b.ScrapeRunID = &parsed
		}
		b.Address = nullStringToPtr(address)
		b.Phone = nullStringToPtr(phone)
		b.Website = nullStringToPtr(website)
		if rating.Valid {
			val := rating.Float64
			b.Rating = &val
		}
		if reviews.Valid {
			cast := int(reviews.Int64)
			b.Reviews = &cast
		}
		b.Category = nullStringToPtr(category)
		b.Hours = nullStringToPtr(hours)
		if len(services) > 0 {
			b.Services = append([]string(nil), services...)
		}
		if len(socialsJSON) > 0 {
			if err := json.Unmarshal(socialsJSON, &b.Socials); err != nil {
				return nil, fmt.Errorf("unmarshal socials: %w", err)
			}
		}
		b.PriceLevel = nullStringToPtr(priceLevel)
		if len(leadScoreJSON) > 0 {
			var score entity.LeadScore
			if err := json.Unmarshal(leadScoreJSON, &score); err != nil {
				return nil, fmt.Errorf("unmarshal lead score: %w", err)
			}
			b.LeadScore = &score
		}

		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return businesses, nil
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func stringSliceOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values
}

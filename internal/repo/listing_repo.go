// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Listing
// model and the category tag collection.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a listing is not found, functions return gorm.ErrRecordNotFound
//     (exported as ErrNotFound).
//   - A unique violation on insert is reported as ErrLinkTaken or ErrSlugTaken
//     depending on the index that fired.
//   - Other DB errors are propagated unchanged.
//
// Functions:
//
//   - CreateListing(ctx, db, l) -> error
//   - ExistsByLink(ctx, db, link) / ExistsBySlug(ctx, db, slug) -> (bool, error)
//   - GetListing(ctx, db, id) -> *domain.Listing, error
//   - GetListingBySlug(ctx, db, network, slug) -> *domain.Listing, error
//   - ListListings(ctx, db, filter) -> []domain.Listing, error
//   - SetSlug / PatchDescription / IncrementViews / SetFeatured -> error
//   - ListCategoryTags(ctx, db) -> []domain.CategoryTag, error
package repo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrLinkTaken reports a unique violation on listings.link.
	ErrLinkTaken = errors.New("link already listed")
	// ErrSlugTaken reports a unique violation on listings.slug.
	ErrSlugTaken = errors.New("slug already listed")
)

// ListingFilter scopes ListListings. Zero values match everything.
type ListingFilter struct {
	Kind    domain.Kind
	Network domain.Network
}

func (f ListingFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Network != "" {
		q = q.Where("network = ?", f.Network)
	}
	return q
}

// CreateListing inserts l, assigning a UUID and UTC timestamps when unset.
func CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return classifyUnique(err)
	}
	return nil
}

// classifyUnique maps driver unique-violation errors onto ErrLinkTaken /
// ErrSlugTaken. SQLite reports "UNIQUE constraint failed: listings.link";
// MySQL reports "Duplicate entry ... for key 'listings.ux_listings_link'".
func classifyUnique(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	low := strings.ToLower(err.Error())
	switch {
	case strings.Contains(low, "listings.link"), strings.Contains(low, "ux_listings_link"):
		return ErrLinkTaken
	case strings.Contains(low, "listings.slug"), strings.Contains(low, "ux_listings_slug"):
		return ErrSlugTaken
	}
	return err
}

func exists(ctx context.Context, db *gorm.DB, column, value string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where(column+" = ?", value).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// ExistsByLink reports whether a listing with the exact normalized link exists.
func ExistsByLink(ctx context.Context, db *gorm.DB, link string) (bool, error) {
	return exists(ctx, db, "link", link)
}

// ExistsBySlug reports whether a listing with the exact slug exists.
func ExistsBySlug(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	return exists(ctx, db, "slug", slug)
}

// GetListing fetches a listing by primary key.
func GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetListingBySlug fetches a listing by slug within a network.
func GetListingBySlug(ctx context.Context, db *gorm.DB, network domain.Network, slug string) (*domain.Listing, error) {
	var l domain.Listing
	err := db.WithContext(ctx).
		Where("network = ? AND slug = ?", network, slug).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListListings returns every listing matching f, newest first. This is the
// "fetch order" the featured-first ordering keeps for non-featured rows.
func ListListings(ctx context.Context, db *gorm.DB, f ListingFilter) ([]domain.Listing, error) {
	var out []domain.Listing
	err := f.apply(db.WithContext(ctx)).
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// SetSlug back-fills the slug of a historical record.
func SetSlug(ctx context.Context, db *gorm.DB, id, slug string) error {
	return updateByID(ctx, db, id, map[string]any{"slug": slug})
}

// PatchDescription writes the translated text into the lang slot and clears
// translation_pending.
func PatchDescription(ctx context.Context, db *gorm.DB, id, lang, text string) error {
	var col string
	switch lang {
	case domain.LangES:
		col = "description_es"
	case domain.LangEN:
		col = "description_en"
	default:
		return errors.New("unsupported description language " + lang)
	}
	return updateByID(ctx, db, id, map[string]any{
		col:                   text,
		"translation_pending": false,
	})
}

// IncrementViews atomically adds one to view_count.
func IncrementViews(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetFeatured toggles the featured flag.
func SetFeatured(ctx context.Context, db *gorm.DB, id string, featured bool) error {
	return updateByID(ctx, db, id, map[string]any{"featured": featured})
}

func updateByID(ctx context.Context, db *gorm.DB, id string, cols map[string]any) error {
	cols["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return classifyUnique(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCategoryTags returns the known tag collection in catalog order.
func ListCategoryTags(ctx context.Context, db *gorm.DB) ([]domain.CategoryTag, error) {
	var tags []domain.CategoryTag
	if err := db.WithContext(ctx).Find(&tags).Error; err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(domain.Categories))
	for i, c := range domain.Categories {
		pos[c] = i
	}
	out := make([]domain.CategoryTag, 0, len(tags))
	rest := make([]domain.CategoryTag, 0)
	for _, t := range tags {
		if _, ok := pos[t.Name]; ok {
			out = append(out, t)
		} else {
			rest = append(rest, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return pos[out[i].Name] < pos[out[j].Name] })
	return append(out, rest...), nil
}

// SeedCategoryTags inserts catalog entries missing from category_tags.
func SeedCategoryTags(db *gorm.DB) error {
	var have []string
	if err := db.Model(&domain.CategoryTag{}).Pluck("name", &have).Error; err != nil {
		return err
	}
	known := make(map[string]bool, len(have))
	for _, n := range have {
		known[n] = true
	}
	now := time.Now().UTC()
	var missing []domain.CategoryTag
	for _, c := range domain.Categories {
		if !known[c] {
			missing = append(missing, domain.CategoryTag{Name: c, Version: domain.CatalogVersion, CreatedAt: now})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return db.Create(&missing).Error
}

// MigrateListingCategories rewrites stored category values through the
// catalog alias map. Unknown tags are kept as stored. It returns the number
// of listings changed.
func MigrateListingCategories(db *gorm.DB) (int, error) {
	var rows []domain.Listing
	if err := db.Select("id", "categories").Find(&rows).Error; err != nil {
		return 0, err
	}
	changed := 0
	for _, r := range rows {
		next := make([]string, 0, len(r.Categories))
		dirty := false
		seen := map[string]bool{}
		for _, c := range r.Categories {
			m, _ := domain.MigrateCategory(c)
			if m != c {
				dirty = true
			}
			if seen[m] {
				dirty = true
				continue
			}
			seen[m] = true
			next = append(next, m)
		}
		if !dirty {
			continue
		}
		if err := db.Model(&domain.Listing{}).Where("id = ?", r.ID).
			UpdateColumn("categories", datatypes.JSONSlice[string](next)).Error; err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

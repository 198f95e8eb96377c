// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/domain"
)

// Stats is the aggregate a listing page's ETag is derived from.
//
//   - Count:        rows matching the filter
//   - MaxUpdatedAt: greatest UpdatedAt, nil when Count is 0
//   - Views:        sum of view_count, so "top" ordering revalidates when
//     counters move even though updated_at does not
type Stats struct {
	Count        int64
	MaxUpdatedAt *time.Time
	Views        int64
}

// ListingsStats returns aggregate metadata for the listings matching f.
func ListingsStats(ctx context.Context, db *gorm.DB, f ListingFilter) (Stats, error) {
	var st Stats
	q := func() *gorm.DB { return f.apply(db.WithContext(ctx).Model(&domain.Listing{})) }

	if err := q().Count(&st.Count).Error; err != nil {
		return Stats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := q().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	st.MaxUpdatedAt = &row.UpdatedAt

	if err := q().Select("COALESCE(SUM(view_count), 0)").Scan(&st.Views).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}

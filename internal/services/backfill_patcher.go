package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/backfill"
	"github.com/tbourn/joingroups-backend/internal/repo"
)

// DescriptionPatcher writes back-filled translations into the listings table.
type DescriptionPatcher struct {
	DB *gorm.DB
}

// PatchDescription implements backfill.Patcher. A deleted listing reports
// backfill.ErrListingGone so the job is dropped.
func (p DescriptionPatcher) PatchDescription(ctx context.Context, listingID, lang, text string) error {
	err := repo.PatchDescription(ctx, p.DB, listingID, lang, text)
	if errors.Is(err, repo.ErrNotFound) {
		return backfill.ErrListingGone
	}
	return err
}

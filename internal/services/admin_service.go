// Package services – AdminService
//
// Operator-only operations: login, the full listing table, and the featured
// toggle. Authorization is enforced by the HTTP layer.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/auth"
	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/repo"
)

// AdminListing exposes the fields hidden from the public JSON.
type AdminListing struct {
	domain.Listing
	Email string `json:"email"`
}

// AdminService backs the admin endpoints.
type AdminService struct {
	DB   *gorm.DB
	Auth *auth.Manager
}

// Login exchanges credentials for a bearer token.
func (s *AdminService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	tok, exp, err := s.Auth.Login(email, password)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		return "", time.Time{}, ErrAdminDisabled
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Msg("admin login rejected")
		return "", time.Time{}, ErrInvalidCredentials
	case err != nil:
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// List returns every listing, newest first, optionally narrowed by kind.
func (s *AdminService) List(ctx context.Context, kind domain.Kind) ([]AdminListing, error) {
	all, err := repo.ListListings(ctx, s.DB, repo.ListingFilter{Kind: kind})
	if err != nil {
		return nil, err
	}
	out := make([]AdminListing, 0, len(all))
	for _, l := range all {
		out = append(out, AdminListing{Listing: l, Email: l.Email})
	}
	return out, nil
}

// SetFeatured toggles the featured flag of listing id.
func (s *AdminService) SetFeatured(ctx context.Context, id string, featured bool) error {
	if err := repo.SetFeatured(ctx, s.DB, id, featured); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrListingNotFound
		}
		return err
	}
	log.Info().Str("listing_id", id).Bool("featured", featured).Msg("featured flag changed")
	return nil
}

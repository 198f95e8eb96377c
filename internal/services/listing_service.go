// Package services – ListingService
//
// This file implements the read side of the directory: the filtered and
// paginated listing pages, the category collection, and the detail view with
// its once-per-visitor view counter. Visitor reports are also handled here
// since they resolve the same detail lookup.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/notify"
	"github.com/tbourn/joingroups-backend/internal/repo"
	"github.com/tbourn/joingroups-backend/internal/search"
	"github.com/tbourn/joingroups-backend/internal/views"
)

// ListQuery selects one page of a collection.
type ListQuery struct {
	Kind     domain.Kind
	Network  domain.Network // optional
	Text     string
	Category string
	Order    search.Order
	Page     int
	Locale   string
}

// ListItem is a listing resolved for one locale.
type ListItem struct {
	domain.Listing
	Description string `json:"description"`
	Path        string `json:"path"`
}

// ListResult is one page of resolved listings.
type ListResult struct {
	Items    []ListItem
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// ListingService serves listing pages, details, and reports.
type ListingService struct {
	DB *gorm.DB

	// Views decides whether a detail hit bumps the counter. Nil counts
	// every hit.
	Views views.Deduper
	// Notifier delivers visitor reports. Nil or disabled rejects them.
	Notifier notify.Notifier

	SiteDomain string
	PageSize   int
}

func (s *ListingService) filter(q ListQuery) repo.ListingFilter {
	return repo.ListingFilter{Kind: q.Kind, Network: q.Network}
}

// List fetches the collection and applies text filter, category filter,
// ordering, and pagination in that order.
func (s *ListingService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("listing.kind", string(q.Kind)),
			attribute.String("listing.network", string(q.Network)),
			attribute.String("list.order", string(q.Order)),
			attribute.Int("list.page", q.Page),
		),
	)
	defer span.End()

	all, err := repo.ListListings(ctx, s.DB, s.filter(q))
	if err != nil {
		return nil, err
	}

	var opts []search.Option
	if s.PageSize > 0 {
		opts = append(opts, search.WithPageSize(s.PageSize))
	}
	page := search.Apply(all, search.Query{
		Text:     q.Text,
		Category: q.Category,
		Order:    q.Order,
		Page:     q.Page,
	}, opts...)

	items := make([]ListItem, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, s.resolve(&page.Items[i], q.Locale))
	}
	span.SetAttributes(attribute.Int("list.total", page.Total))

	return &ListResult{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Pages:    page.Pages,
	}, nil
}

// Stats returns the counters used to build a weak ETag for a collection.
func (s *ListingService) Stats(ctx context.Context, kind domain.Kind, network domain.Network) (repo.Stats, error) {
	return repo.ListingsStats(ctx, s.DB, repo.ListingFilter{Kind: kind, Network: network})
}

// Categories returns the known category tags in catalog order.
func (s *ListingService) Categories(ctx context.Context) ([]domain.CategoryTag, error) {
	return repo.ListCategoryTags(ctx, s.DB)
}

func (s *ListingService) resolve(l *domain.Listing, locale string) ListItem {
	return ListItem{
		Listing:     *l,
		Description: search.PickDescription(l, locale),
		Path:        domain.PublicPath(l.Network, l.Slug),
	}
}

// Detail is a single listing page.
type Detail struct {
	ListItem
	URL string `json:"url"`
}

// Detail loads the listing at network/slug and counts the view once per
// visitor.
func (s *ListingService) Detail(ctx context.Context, network, slug, visitor, locale string) (*Detail, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "Detail",
		trace.WithAttributes(
			attribute.String("listing.network", network),
			attribute.String("listing.slug", slug),
		),
	)
	defer span.End()

	l, err := s.lookup(ctx, network, slug)
	if err != nil {
		return nil, err
	}

	if s.countView(ctx, l.Slug, visitor) {
		if err := repo.IncrementViews(ctx, s.DB, l.ID); err != nil {
			log.Warn().Err(err).Str("listing_id", l.ID).Msg("increment view count")
		} else {
			l.ViewCount++
		}
	}

	item := s.resolve(l, locale)
	return &Detail{ListItem: item, URL: domain.PublicURL(s.SiteDomain, l.City, item.Path)}, nil
}

func (s *ListingService) countView(ctx context.Context, slug, visitor string) bool {
	if s.Views == nil {
		return true
	}
	first, err := s.Views.First(ctx, slug, visitor)
	if err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("view dedup unavailable, counting hit")
		return true
	}
	return first
}

// lookup finds a listing by slug. Historical rows may lack a stored slug, so
// a miss falls back to matching Slugify(name) within the network and stores
// the slug on the row it finds.
func (s *ListingService) lookup(ctx context.Context, network, slug string) (*domain.Listing, error) {
	n, ok := domain.ParseNetwork(network)
	if !ok {
		return nil, ErrInvalidNetwork
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrListingNotFound
	}

	l, err := repo.GetListingBySlug(ctx, s.DB, n, slug)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	all, err := repo.ListListings(ctx, s.DB, repo.ListingFilter{Network: n})
	if err != nil {
		return nil, err
	}
	for i := range all {
		if domain.Slugify(all[i].Name) != slug {
			continue
		}
		l := &all[i]
		if l.Slug == "" {
			if err := repo.SetSlug(ctx, s.DB, l.ID, slug); err != nil {
				log.Warn().Err(err).Str("listing_id", l.ID).Msg("back-fill slug")
			} else {
				l.Slug = slug
			}
		}
		return l, nil
	}
	return nil, ErrListingNotFound
}

// Report sends an operator alert for the listing at network/slug.
func (s *ListingService) Report(ctx context.Context, network, slug string, kind notify.ReportKind) error {
	if !kind.Valid() {
		return ErrInvalidReport
	}
	if s.Notifier == nil || !s.Notifier.Enabled() {
		return ErrAlertsDisabled
	}

	l, err := s.lookup(ctx, network, slug)
	if err != nil {
		return err
	}
	path := domain.PublicPath(l.Network, slugOr(l, slug))
	return s.Notifier.Notify(ctx, notify.Alert{
		Kind: kind,
		Name: l.Name,
		URL:  domain.PublicURL(s.SiteDomain, l.City, path),
	})
}

func slugOr(l *domain.Listing, fallback string) string {
	if l.Slug != "" {
		return l.Slug
	}
	return fallback
}

// Package search filters, orders, and paginates directory listings in memory.
// It is deterministic and side-effect free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for tunables (Option pattern)
//   - Unicode case folding via golang.org/x/text/cases for text matching
//   - Stable ordering, so ties keep the fetch order supplied by the caller
//
// The pipeline applied by Apply is fixed: free-text match, category filter,
// ordering, then fixed-size pagination.
package search

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/utils"
)

// DefaultPageSize is the number of listings per page.
const DefaultPageSize = 12

// Order selects how listings are ranked.
type Order string

const (
	// OrderFeatured puts featured listings first and keeps fetch order otherwise.
	OrderFeatured Order = "featured"
	// OrderTop ranks by view count, highest first.
	OrderTop Order = "top"
	// OrderNewest ranks by creation time, latest first.
	OrderNewest Order = "newest"
)

// ParseOrder maps the orden query parameter onto an Order. The Spanish
// aliases used in public URLs ("vistos", "nuevos") are accepted. Anything
// else yields OrderFeatured.
func ParseOrder(s string) Order {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top", "vistos", "views":
		return OrderTop
	case "newest", "nuevos", "new":
		return OrderNewest
	default:
		return OrderFeatured
	}
}

// Query describes one listing page request.
type Query struct {
	Text     string
	Category string
	Order    Order
	Page     int // 1-based; values < 1 mean 1
}

// Page is one slice of the filtered, ordered result.
type Page struct {
	Items    []domain.Listing
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// Option configures Apply.
type Option func(*config)

type config struct {
	pageSize int
}

func defaultConfig() config {
	return config{pageSize: DefaultPageSize}
}

// WithPageSize overrides the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

var folder = cases.Fold()

func fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// MatchText reports whether q occurs, case-insensitively, in the listing's
// name, any of its categories, or its content flag. An empty q matches.
func MatchText(l *domain.Listing, q string) bool {
	q = fold(q)
	if q == "" {
		return true
	}
	if strings.Contains(fold(l.Name), q) || strings.Contains(fold(l.ContentFlag), q) {
		return true
	}
	for _, c := range l.Categories {
		if strings.Contains(fold(c), q) {
			return true
		}
	}
	return false
}

// HasCategory reports exact case-insensitive membership of tag. An empty
// tag matches every listing.
func HasCategory(l *domain.Listing, tag string) bool {
	tag = fold(tag)
	if tag == "" {
		return true
	}
	for _, c := range l.Categories {
		if fold(c) == tag {
			return true
		}
	}
	return false
}

// Sort orders items in place. The sort is stable.
func Sort(items []domain.Listing, o Order) {
	switch o {
	case OrderTop:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ViewCount > items[j].ViewCount })
	case OrderNewest:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Featured && !items[j].Featured })
	}
}

// Apply runs the full pipeline over items and returns the requested page.
// items is not modified.
func Apply(items []domain.Listing, q Query, opts ...Option) Page {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	matched := make([]domain.Listing, 0, len(items))
	for i := range items {
		if MatchText(&items[i], q.Text) && HasCategory(&items[i], q.Category) {
			matched = append(matched, items[i])
		}
	}
	Sort(matched, q.Order)

	total := len(matched)
	start, end, pages, page := utils.Window(total, q.Page, cfg.pageSize)
	return Page{
		Items:    matched[start:end],
		Total:    total,
		Page:     page,
		PageSize: cfg.pageSize,
		Pages:    pages,
	}
}

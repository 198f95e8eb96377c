// Package httpapi builds the directory's Gin engine: the middleware chain,
// the public listing and assist endpoints, the admin group and the
// operational routes (/health, /metrics, /swagger). Services are constructed
// here from the collaborators main hands over in Deps.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/joingroups-backend/docs"
	"github.com/tbourn/joingroups-backend/internal/auth"
	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/config"
	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/http/handlers"
	"github.com/tbourn/joingroups-backend/internal/http/middleware"
	"github.com/tbourn/joingroups-backend/internal/notify"
	"github.com/tbourn/joingroups-backend/internal/repo"
	"github.com/tbourn/joingroups-backend/internal/services"
	"github.com/tbourn/joingroups-backend/internal/views"
)

// listingRepoShim adapts the repository free functions to the
// services.SubmissionRepo interface.
type listingRepoShim struct{}

// ExistsByLink proxies repo.ExistsByLink.
func (listingRepoShim) ExistsByLink(ctx context.Context, db *gorm.DB, link string) (bool, error) {
	return repo.ExistsByLink(ctx, db, link)
}

// ExistsBySlug proxies repo.ExistsBySlug.
func (listingRepoShim) ExistsBySlug(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	return repo.ExistsBySlug(ctx, db, slug)
}

// CreateListing proxies repo.CreateListing.
func (listingRepoShim) CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	return repo.CreateListing(ctx, db, l)
}

// Deps are the process-wide collaborators built in main. Nil members degrade
// the matching feature instead of failing the router.
type Deps struct {
	DB       *gorm.DB
	Captcha  *captcha.Manager // nil when disabled or redis is absent
	Views    views.Deduper
	Notifier notify.Notifier
	Backfill services.Enqueuer
	Suggest  handlers.Suggester
	Auth     *auth.Manager
}

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// RegisterRoutes installs the middleware chain on r and mounts the API under
// cfg.APIBasePath.
//
// The chain runs outermost first:
//  1. otelgin opens the server span
//  2. RequestID, then RequestLogger, which picks up that span's ids
//  3. RedactingLogger writes one scrubbed access line per request
//  4. Recovery sits inside the logger so a panic still gets its line
//  5. body cap
//  6. Metrics
//  7. IdempotencyValidator flags replays...
//  8. ...which the global rate limiter then lets through
//  9. CORS and security headers
//  10. gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1)
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2)
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())

	// 3) probes and scrapes stay out of the access log
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))

	// 4)
	r.Use(middleware.Recovery())

	// 5)
	r.Use(limitBody(maxBodyBytes))

	// 6)
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(deps.DB),
	))

	// 8) per client IP; no route has authenticated yet
	global := middleware.NewRateLimiter("global", cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(global.Handler())

	// 9)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{
			path.Join(cfg.APIBasePath, "admin"),
			path.Join(cfg.APIBasePath, "captcha"),
		},
	}))

	// 10) Compress responses; listing pages are large and repetitive
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(buildDeps(deps, cfg))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		submit := middleware.NewRateLimiter("submit", cfg.SubmitRPS, cfg.SubmitBurst, middleware.KeyByIP())
		api.POST("/listings", submit.Handler(), h.SubmitListing)
		api.GET("/listings", h.ListListings)
		api.GET("/listings/:network/:slug", h.GetListing)
		api.POST("/listings/:network/:slug/report", h.ReportListing)

		api.GET("/categories", h.ListCategories)
		api.GET("/links/check", h.CheckLink)

		api.GET("/captcha", h.GetCaptcha)
		api.POST("/translate/suggest", h.SuggestTranslation)

		api.POST("/admin/login", h.AdminLogin)
		// keyed by token subject, so it must follow RequireBearer
		adminRL := middleware.NewRateLimiter("admin", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
		admin := api.Group("/admin", middleware.RequireBearer(deps.Auth), adminRL.Handler())
		{
			admin.GET("/listings", h.AdminListListings)
			admin.PUT("/listings/:id/featured", h.AdminSetFeatured)
		}
	}
}

// buildDeps assembles the services behind the handlers.
func buildDeps(deps Deps, cfg config.Config) handlers.Deps {
	sub := &services.SubmissionService{
		DB:         deps.DB,
		Repo:       listingRepoShim{},
		Backfill:   deps.Backfill,
		SiteDomain: cfg.SiteDomain,
	}
	d := handlers.Deps{
		Submissions: sub,
		Listings: &services.ListingService{
			DB:         deps.DB,
			Views:      deps.Views,
			Notifier:   deps.Notifier,
			SiteDomain: cfg.SiteDomain,
			PageSize:   cfg.PageSize,
		},
		Admin:          &services.AdminService{DB: deps.DB, Auth: deps.Auth},
		Suggest:        deps.Suggest,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	// Typed-nil interfaces would defeat the handlers' nil checks.
	if deps.Captcha != nil {
		sub.Captcha = deps.Captcha
		d.Captcha = deps.Captcha
	} else if !cfg.Captcha.Enabled {
		d.Captcha = captcha.Disabled{}
	}
	return d
}

// idempotencyLookup reports live records; a missing or expired record is a
// plain miss, any other store error is passed on to be logged.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, clientID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, clientID, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when none are configured, otherwise only
// the listed ones. The leading handler sets Access-Control-Allow-Origin even
// on requests without an Origin header, which gin-contrib/cors skips.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderSessionID, middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}

	var allowOrigin gin.HandlerFunc
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		allowOrigin = func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
	} else {
		cc.AllowOrigins = origins
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		allowOrigin = func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); allowed[origin] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		}
	}
	return []gin.HandlerFunc{allowOrigin, cors.New(cc)}
}

// limitBody wraps the body in http.MaxBytesReader. JSON handlers turn the
// resulting *http.MaxBytesError into 413 payload_too_large.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// Listing HTTP handlers.
//
// This file exposes the public REST endpoints of the directory:
//   - POST /listings                        (submit a listing)
//   - GET  /listings                        (filtered, ordered, paginated page; ETag)
//   - GET  /listings/{network}/{slug}       (detail, counts the view)
//   - POST /listings/{network}/{slug}/report (operator alert)
//   - GET  /categories                      (known category tags)
//   - GET  /links/check                     (prefix autocorrect + link shape)
//
// Handlers are transport-thin: they bind and normalize input, call the
// application services, and translate results and sentinel errors into HTTP
// responses.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// submission exists for (client, key), POST /listings returns the stored
// listing with 200 and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/http/middleware"
	"github.com/tbourn/joingroups-backend/internal/notify"
	"github.com/tbourn/joingroups-backend/internal/repo"
	"github.com/tbourn/joingroups-backend/internal/search"
	"github.com/tbourn/joingroups-backend/internal/services"
	"github.com/tbourn/joingroups-backend/internal/translate"
	"github.com/tbourn/joingroups-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SubmissionService runs the submission workflow.
type SubmissionService interface {
	Submit(ctx context.Context, in services.SubmitInput) (*services.SubmitResult, error)
}

// ListingService serves the read side and visitor reports.
type ListingService interface {
	List(ctx context.Context, q services.ListQuery) (*services.ListResult, error)
	Stats(ctx context.Context, kind domain.Kind, network domain.Network) (repo.Stats, error)
	Categories(ctx context.Context) ([]domain.CategoryTag, error)
	Detail(ctx context.Context, network, slug, visitor, locale string) (*services.Detail, error)
	Report(ctx context.Context, network, slug string, kind notify.ReportKind) error
}

// AdminService backs the operator endpoints.
type AdminService interface {
	Login(ctx context.Context, email, password string) (string, time.Time, error)
	List(ctx context.Context, kind domain.Kind) ([]services.AdminListing, error)
	SetFeatured(ctx context.Context, id string, featured bool) error
}

// Suggester produces interactive translation suggestions.
type Suggester interface {
	Suggest(ctx context.Context, key string, req translate.SuggestRequest) translate.Suggestion
}

//
// Handler wiring
//

// Deps are the services the handlers depend on. Captcha and Suggest may be
// nil; their endpoints then answer 503.
type Deps struct {
	Submissions SubmissionService
	Listings    ListingService
	Admin       AdminService
	Captcha     captcha.Generator
	Suggest     Suggester

	// IdempotencyTTL bounds how long a submission can be replayed.
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints of the directory.
type Handlers struct {
	subSvc   SubmissionService
	listSvc  ListingService
	adminSvc AdminService
	captcha  captcha.Generator
	suggest  Suggester
	idemTTL  time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		subSvc:   d.Submissions,
		listSvc:  d.Listings,
		adminSvc: d.Admin,
		captcha:  d.Captcha,
		suggest:  d.Suggest,
		idemTTL:  ttl,
	}
}

//
// DTOs
//

// SubmitListingRequest is the JSON payload of the submission form.
type SubmitListingRequest struct {
	Network       string   `json:"network" example:"telegram"`
	Name          string   `json:"name" example:"Programadores LATAM"`
	Link          string   `json:"link" example:"https://t.me/programadores_latam"`
	DescriptionES string   `json:"description_es" example:"Comunidad para compartir ofertas y dudas de programación."`
	DescriptionEN string   `json:"description_en"`
	Categories    []string `json:"categories" example:"Programación,Tecnología"`
	ContentFlag   string   `json:"content_flag" example:"no"`
	City          string   `json:"city" example:"mx"`
	Email         string   `json:"email" example:"owner@example.com"`
	EmailRepeat   string   `json:"email_repeat" example:"owner@example.com"`
	AcceptTerms   bool     `json:"accept_terms" example:"true"`
	CaptchaID     string   `json:"captcha_id"`
	CaptchaAnswer string   `json:"captcha_answer"`
}

// SubmitListingResponse describes the created listing and where the site
// should redirect the submitter.
type SubmitListingResponse struct {
	Listing           *domain.Listing `json:"listing"`
	Stage             services.Stage  `json:"stage" example:"done"`
	BackfillScheduled bool            `json:"backfill_scheduled"`
	RedirectPath      string          `json:"redirect_path" example:"/comunidades/grupos-de-telegram/programadores-latam"`
	RedirectURL       string          `json:"redirect_url" example:"https://mx.joingroups.pro/comunidades/grupos-de-telegram/programadores-latam"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListListingsResponse wraps a page of listings and pagination information.
type ListListingsResponse struct {
	Listings   []services.ListItem `json:"listings"`
	Pagination Pagination          `json:"pagination"`
}

// CategoriesResponse lists the known category tags.
type CategoriesResponse struct {
	Categories []domain.CategoryTag `json:"categories"`
}

// ReportRequest is the JSON payload of a visitor report.
type ReportRequest struct {
	Kind string `json:"kind" binding:"required" example:"broken_link"`
}

// LinkCheckResponse is the live link feedback shown while typing.
type LinkCheckResponse struct {
	Link    string `json:"link"`
	Valid   bool   `json:"valid"`
	Shape   string `json:"shape,omitempty"`
	Message string `json:"message,omitempty"`
}

//
// Helpers
//

// localeFrom returns the ?lang= parameter, else the first Accept-Language
// tag, else "".
func localeFrom(c *gin.Context) string {
	if v := strings.TrimSpace(c.Query("lang")); v != "" {
		return v
	}
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// scope resolves the kind/network query pair. A network implies its kind.
func scope(c *gin.Context) (domain.Kind, domain.Network, error) {
	if raw := strings.TrimSpace(c.Query("network")); raw != "" {
		n, ok := domain.ParseNetwork(raw)
		if !ok {
			return "", "", services.ErrInvalidNetwork
		}
		return n.Kind(), n, nil
	}
	switch domain.Kind(strings.ToLower(strings.TrimSpace(c.Query("kind")))) {
	case "", domain.KindGroup:
		return domain.KindGroup, "", nil
	case domain.KindClan:
		return domain.KindClan, "", nil
	}
	return "", "", errors.New("kind must be group or clan")
}

// submissionDB reaches the concrete service's DB for idempotency records.
func (h *Handlers) submissionDB() (*gorm.DB, string) {
	if svc, ok := h.subSvc.(*services.SubmissionService); ok {
		return svc.DB, svc.SiteDomain
	}
	return nil, ""
}

func submitResponse(l *domain.Listing, stage services.Stage, backfill bool, siteDomain string) SubmitListingResponse {
	path := domain.PublicPath(l.Network, l.Slug)
	return SubmitListingResponse{
		Listing:           l,
		Stage:             stage,
		BackfillScheduled: backfill,
		RedirectPath:      path,
		RedirectURL:       domain.PublicURL(siteDomain, l.City, path),
	}
}

// submitFailure maps workflow errors onto the error taxonomy.
func submitFailure(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		failFields(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "submission is invalid", verr.Fields)
	case errors.Is(err, services.ErrVerificationFailed):
		fail(c, http.StatusForbidden, ErrCodeVerificationFailed, "human verification failed")
	case errors.Is(err, services.ErrDuplicateLink):
		fail(c, http.StatusConflict, ErrCodeDuplicateLink, "this link is already listed")
	case errors.Is(err, services.ErrDuplicateName):
		fail(c, http.StatusConflict, ErrCodeDuplicateName, "a listing with this name already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// lookupFailure maps detail/report lookup errors.
func lookupFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidNetwork):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown network")
	case errors.Is(err, services.ErrListingNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "listing not found")
	case errors.Is(err, services.ErrInvalidReport):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be broken_link or report")
	case errors.Is(err, services.ErrAlertsDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeAlertsDisabled, "alerts are not configured")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// SubmitListing godoc
// @ID          submitListing
// @Summary     Submit a listing
// @Description Validates the form, checks the captcha, rejects duplicate links and names,
// @Description stores the listing and schedules a translation back-fill for an empty description slot.
// @Description Supports idempotency via the Idempotency-Key header (same key → same listing).
// @Tags        Listings
// @Accept      json
// @Produce     json
//
// @Param       X-Session-ID     header  string  false "Client session id (idempotency scope; falls back to IP)"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.SubmitListingRequest  true  "Submission form"
//
// @Success     201  {object}  handlers.SubmitListingResponse  "Created"
// @Success     200  {object}  handlers.SubmitListingResponse  "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed body"
// @Failure     403  {object}  handlers.ErrorResponse  "Human verification failed"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate link or name"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /listings [post]
func (h *Handlers) SubmitListing(c *gin.Context) {
	ctx := c.Request.Context()

	var req SubmitListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "invalid JSON body")
		return
	}

	db, siteDomain := h.submissionDB()
	client := middleware.ClientID(c)

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, client, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetListing(ctx, db, rec.ListingID); err2 == nil {
				c.Header(middleware.HeaderIdempotencyReplayed, "true")
				ok(c, http.StatusOK, submitResponse(prev, services.StageDone, false, siteDomain))
				return
			}
		}
	}

	res, err := h.subSvc.Submit(ctx, services.SubmitInput{
		Network:       req.Network,
		Name:          req.Name,
		Link:          req.Link,
		DescriptionES: req.DescriptionES,
		DescriptionEN: req.DescriptionEN,
		Categories:    req.Categories,
		ContentFlag:   req.ContentFlag,
		City:          req.City,
		Email:         req.Email,
		EmailRepeat:   req.EmailRepeat,
		AcceptTerms:   req.AcceptTerms,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
	})
	if err != nil {
		submitFailure(c, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && db != nil {
		if _, err := repo.CreateIdempotency(ctx, db, client, idemKey, res.Listing.ID, http.StatusCreated, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Msg("store idempotency record")
		}
	}

	ok(c, http.StatusCreated, SubmitListingResponse{
		Listing:           res.Listing,
		Stage:             res.Stage,
		BackfillScheduled: res.Backfill,
		RedirectPath:      res.RedirectPath,
		RedirectURL:       res.RedirectURL,
	})
}

// ListListings godoc
// @ID          listListings
// @Summary     List listings (filtered, ordered, paginated)
// @Description Returns one page of a collection. Free text matches name, categories and content flag;
// @Description category is an exact tag. Order is featured (default), top/vistos or newest/nuevos.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Listings
// @Produce     json
//
// @Param       kind           query   string  false "group or clan"  Enums(group, clan) default(group)
// @Param       network        query   string  false "Network (implies kind)"  Enums(telegram, whatsapp, clash-royale, clash-of-clans)
// @Param       q              query   string  false "Free text"
// @Param       category       query   string  false "Category tag"
// @Param       orden          query   string  false "Order"  Enums(featured, top, newest, vistos, nuevos)
// @Param       page           query   int     false "Page number"  minimum(1) default(1)
// @Param       lang           query   string  false "Locale for descriptions (else Accept-Language)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListListingsResponse
// @Header      200  {string} ETag  "Weak ETag for current collection state"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings [get]
func (h *Handlers) ListListings(c *gin.Context) {
	ctx := c.Request.Context()

	kind, network, err := scope(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	locale := localeFrom(c)
	// Descriptions are picked per language, so the tag carries it and caches
	// must key on the header too.
	c.Writer.Header().Add("Vary", "Accept-Language")

	// ETag pre-check (best effort).
	if st, err := h.listSvc.Stats(ctx, kind, network); err == nil {
		var ts int64
		if st.MaxUpdatedAt != nil {
			ts = st.MaxUpdatedAt.Unix()
		}
		etag := fmt.Sprintf(`W/"listings:%s:%s:%s:%d:%d:%d"`,
			kind, network, search.BaseLanguage(locale), st.Count, ts, st.Views)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	order := c.Query("orden")
	if order == "" {
		order = c.Query("order")
	}
	res, err := h.listSvc.List(ctx, services.ListQuery{
		Kind:     kind,
		Network:  network,
		Text:     c.Query("q"),
		Category: c.Query("category"),
		Order:    search.ParseOrder(order),
		Page:     utils.AtoiDefault(c.Query("page"), 1),
		Locale:   locale,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListListingsResponse{
		Listings: res.Items,
		Pagination: Pagination{
			Page:       res.Page,
			PageSize:   res.PageSize,
			Total:      int64(res.Total),
			TotalPages: res.Pages,
			HasNext:    res.Page < res.Pages,
		},
	})
}

// ListCategories godoc
// @ID          listCategories
// @Summary     List category tags
// @Description Returns the known category tags in catalog order.
// @Tags        Listings
// @Produce     json
// @Success     200  {object} handlers.CategoriesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	tags, err := h.listSvc.Categories(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, CategoriesResponse{Categories: tags})
}

// GetListing godoc
// @ID          getListing
// @Summary     Listing detail
// @Description Loads a listing by network and slug and counts the view once per visitor.
// @Tags        Listings
// @Produce     json
//
// @Param       X-Session-ID  header  string  false "Visitor id (falls back to IP)"
// @Param       network       path    string  true  "Network"  Enums(telegram, whatsapp, clash-royale, clash-of-clans)
// @Param       slug          path    string  true  "Listing slug"
// @Param       lang          query   string  false "Locale for the description"
//
// @Success     200  {object} services.Detail
// @Failure     400  {object} handlers.ErrorResponse "Unknown network"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/{network}/{slug} [get]
func (h *Handlers) GetListing(c *gin.Context) {
	d, err := h.listSvc.Detail(c.Request.Context(), c.Param("network"), c.Param("slug"), middleware.ClientID(c), localeFrom(c))
	if err != nil {
		lookupFailure(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// ReportListing godoc
// @ID          reportListing
// @Summary     Report a listing
// @Description Sends an operator alert that a listing's link is broken or its content is abusive.
// @Tags        Listings
// @Accept      json
// @Produce     json
//
// @Param       network  path  string  true  "Network"
// @Param       slug     path  string  true  "Listing slug"
// @Param       body     body  handlers.ReportRequest  true  "Report kind"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Failure     503  {object} handlers.ErrorResponse "Alerts not configured"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/{network}/{slug}/report [post]
func (h *Handlers) ReportListing(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "kind required")
		return
	}
	kind := notify.ReportKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if err := h.listSvc.Report(c.Request.Context(), c.Param("network"), c.Param("slug"), kind); err != nil {
		lookupFailure(c, err)
		return
	}
	noContent(c)
}

// CheckLink godoc
// @ID          checkLink
// @Summary     Check a link while typing
// @Description Snaps a mistyped prefix back to the network's expected one and reports whether
// @Description the result has a valid shape.
// @Tags        Listings
// @Produce     json
//
// @Param       network  query  string  true  "Network"
// @Param       link     query  string  true  "Link as typed"
//
// @Success     200  {object} handlers.LinkCheckResponse
// @Failure     400  {object} handlers.ErrorResponse "Unknown network"
// @Router      /links/check [get]
func (h *Handlers) CheckLink(c *gin.Context) {
	n, valid := domain.ParseNetwork(c.Query("network"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown network")
		return
	}
	link := domain.AutocorrectPrefix(n, strings.TrimSpace(c.Query("link")))
	resp := LinkCheckResponse{Link: link}
	shape, err := domain.ValidateLink(n, link)
	if err != nil {
		resp.Message = err.Error()
	} else {
		resp.Valid = true
		resp.Shape = string(shape)
	}
	ok(c, http.StatusOK, resp)
}

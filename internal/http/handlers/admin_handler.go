// Admin HTTP handlers.
//
//   - POST /admin/login                   (credentials → bearer token)
//   - GET  /admin/listings                (every listing, with contact email)
//   - PUT  /admin/listings/{id}/featured  (toggle featured)
//
// The listing routes are mounted behind middleware.RequireBearer.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/services"
)

// LoginRequest is the admin credential payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"admin@joingroups.pro"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminListingsResponse wraps the admin table.
type AdminListingsResponse struct {
	Listings []services.AdminListing `json:"listings"`
}

// FeaturedRequest toggles the featured flag.
type FeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

// AdminLogin godoc
// @ID          adminLogin
// @Summary     Admin login
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object} handlers.LoginResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Failure     503  {object} handlers.ErrorResponse "Admin login not configured"
// @Router      /admin/login [post]
func (h *Handlers) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "email and password required")
		return
	}
	tok, exp, err := h.adminSvc.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrAdminDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeAdminDisabled, "admin login is not configured")
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: tok, ExpiresAt: exp})
}

// AdminListListings godoc
// @ID          adminListListings
// @Summary     List every listing (admin)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       kind  query  string  false "group or clan (empty for both)"
// @Success     200  {object} handlers.AdminListingsResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/listings [get]
func (h *Handlers) AdminListListings(c *gin.Context) {
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(c.Query("kind"))))
	if kind != "" && kind != domain.KindGroup && kind != domain.KindClan {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be group or clan")
		return
	}
	items, err := h.adminSvc.List(c.Request.Context(), kind)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, AdminListingsResponse{Listings: items})
}

// AdminSetFeatured godoc
// @ID          adminSetFeatured
// @Summary     Toggle featured (admin)
// @Tags        Admin
// @Accept      json
// @Security    BearerAuth
// @Param       id    path  string  true  "Listing ID (UUID)"
// @Param       body  body  handlers.FeaturedRequest  true  "New flag"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Router      /admin/listings/{id}/featured [put]
func (h *Handlers) AdminSetFeatured(c *gin.Context) {
	var req FeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Featured == nil {
		failBind(c, err, "featured required")
		return
	}
	err := h.adminSvc.SetFeatured(c.Request.Context(), c.Param("id"), *req.Featured)
	switch {
	case errors.Is(err, services.ErrListingNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "listing not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

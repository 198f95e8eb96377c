// Form-assist HTTP handlers: the captcha challenge and the debounced
// description translation.
//
//   - GET  /captcha             (new challenge image)
//   - POST /translate/suggest   (translate the typed description slot)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/http/middleware"
	"github.com/tbourn/joingroups-backend/internal/translate"
)

// CaptchaResponse is a new human-verification challenge.
type CaptchaResponse struct {
	CaptchaID string `json:"captcha_id"`
	// Image is a data URI (data:image/png;base64,...)
	Image string `json:"image"`
}

// SuggestRequest is the description form state at a keystroke.
type SuggestRequest struct {
	BaseLang      string `json:"base_lang" example:"es"`
	DescriptionES string `json:"description_es"`
	DescriptionEN string `json:"description_en"`
}

// GetCaptcha godoc
// @ID          getCaptcha
// @Summary     New captcha challenge
// @Description Issues a digit captcha. Issuing is rate limited per client IP.
// @Tags        Submission
// @Produce     json
// @Success     200  {object} handlers.CaptchaResponse
// @Failure     429  {object} handlers.ErrorResponse "Too many challenges"
// @Failure     503  {object} handlers.ErrorResponse "Captcha disabled or unavailable"
// @Router      /captcha [get]
func (h *Handlers) GetCaptcha(c *gin.Context) {
	if h.captcha == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeCaptchaFailed, "captcha is disabled")
		return
	}
	id, img, err := h.captcha.Generate(c.Request.Context(), c.ClientIP())
	switch {
	case errors.Is(err, captcha.ErrRateLimited):
		c.Header("Retry-After", "60")
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "too many captcha requests")
		return
	case errors.Is(err, captcha.ErrDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeCaptchaFailed, "captcha is disabled")
		return
	case err != nil:
		fail(c, http.StatusServiceUnavailable, ErrCodeCaptchaFailed, err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, CaptchaResponse{CaptchaID: id, Image: img})
}

// SuggestTranslation godoc
// @ID          suggestTranslation
// @Summary     Suggest the other description slot
// @Description Waits for the typing pause, then translates the slot written in the UI language into
// @Description the empty one. A newer call from the same session supersedes an older one.
// @Tags        Submission
// @Accept      json
// @Produce     json
// @Param       X-Session-ID  header  string  false "Editing session (falls back to IP)"
// @Param       body          body    handlers.SuggestRequest  true  "Form state"
// @Success     200  {object} translate.Suggestion
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Translation not configured"
// @Router      /translate/suggest [post]
func (h *Handlers) SuggestTranslation(c *gin.Context) {
	if h.suggest == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "translation is not configured")
		return
	}
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err, "invalid JSON body")
		return
	}
	s := h.suggest.Suggest(c.Request.Context(), middleware.ClientID(c), translate.SuggestRequest{
		BaseLang:      req.BaseLang,
		DescriptionES: req.DescriptionES,
		DescriptionEN: req.DescriptionEN,
	})
	ok(c, http.StatusOK, s)
}

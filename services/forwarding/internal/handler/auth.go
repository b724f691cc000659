package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/httputil"
)

// CookieConfig — cookie с session token.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	auth   AuthService
	cookie CookieConfig
}

func NewAuthHandler(auth AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type AuthRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestCustomerAuth — POST /api/v1/auth/request
func (h *AuthHandler) RequestCustomerAuth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Поле email обязательно")
		return
	}
	if err := h.auth.RequestCustomerAuth(c.Request.Context(), req.Email); err != nil {
		HandleError(c, err, "RequestCustomerAuth")
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestHostAuth — POST /api/v1/auth/host/request
func (h *AuthHandler) RequestHostAuth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Поле email обязательно")
		return
	}
	if err := h.auth.RequestHostAuth(c.Request.Context(), req.Email); err != nil {
		HandleError(c, err, "RequestHostAuth")
		return
	}
	c.Status(http.StatusNoContent)
}

// Verify — GET /api/v1/auth/verify/:token
// Обменивает токен из письма на http-only cookie сессии.
func (h *AuthHandler) Verify(c *gin.Context) {
	sess, err := h.auth.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		HandleError(c, err, "Verify")
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.Token, maxAge, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"role": sess.Role, "id": sess.Subject})
}

// Logout — POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if token := httputil.ExtractSessionToken(c, h.cookie.Name); token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			// cookie всё равно очищается
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Ошибка отзыва токена при выходе")
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

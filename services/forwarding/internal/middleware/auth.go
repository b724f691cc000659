// Package middleware — HTTP middleware сервиса пересылки.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/httputil"
)

// Authenticator проверяет session token (auth.Service).
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*jwt.Claims, error)
}

// AuthMiddleware пускает запрос с действующим session token нужной роли.
// Токен берётся из http-only cookie, для API-клиентов — из Authorization.
type AuthMiddleware struct {
	auth       Authenticator
	cookieName string
}

func NewAuthMiddleware(auth Authenticator, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, cookieName: cookieName}
}

// Require возвращает handler для роли customer или host.
func (m *AuthMiddleware) Require(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := httputil.ExtractSessionToken(c, m.cookieName)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		claims, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		if claims.Role != role {
			log.Warn().Str("role", claims.Role).Str("required", role).Msg("Недостаточно прав")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Недостаточно прав",
			})
			return
		}

		c.Set(httputil.KeySubjectID, claims.Subject)
		c.Set(httputil.KeyRole, claims.Role)
		c.Set(httputil.KeyJTI, claims.ID)

		c.Next()
	}
}

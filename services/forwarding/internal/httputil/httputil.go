// Package httputil — общие помощники HTTP слоя.
package httputil

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи gin.Context, которые выставляет middleware авторизации.
const (
	KeySubjectID = "subject_id"
	KeyRole      = "role"
	KeyJTI       = "jti"
)

// ExtractBearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
// Префикс регистронезависимый.
func ExtractBearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// ExtractSessionToken — сначала cookie сессии, затем Authorization.
func ExtractSessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}
	return ExtractBearerToken(c)
}

// SubjectID — ID покупателя или хоста из session token.
func SubjectID(c *gin.Context) string {
	return c.GetString(KeySubjectID)
}

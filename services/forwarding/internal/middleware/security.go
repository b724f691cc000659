package middleware

import "github.com/gin-gonic/gin"

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders проставляет заголовки для JSON API с сессией в cookie.
// HSTS включается вместе с Secure-cookie: по HTTP браузер её всё равно не отдаст.
func SecurityHeaders(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()

		// API не отдаёт HTML, встраивать и исполнять нечего
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		// в ответах адреса хостов и email покупателей
		h.Set("Cache-Control", "no-store")
		h.Set("Referrer-Policy", "no-referrer")
		if secureCookie {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		c.Next()
	}
}

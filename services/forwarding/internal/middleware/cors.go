package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig — настройки CORS.
type CORSConfig struct {
	// AllowedOrigins — разрешённые источники. "*" только для development.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// AllowCredentials нужен фронтенду для cookie сессии. С "*" не сочетается.
	AllowCredentials bool
	MaxAge           string
}

// DefaultCORSConfig — конфигурация для фронтенда на известных origin.
func DefaultCORSConfig(origins []string) CORSConfig {
	cfg := CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           "3600",
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowCredentials = false
		}
	}
	return cfg
}

// CORS отвечает на preflight и выставляет заголовки для разрешённых origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		wildcard, allowed := false, false
		for _, o := range cfg.AllowedOrigins {
			if o == "*" {
				wildcard, allowed = true, true
				break
			}
			if o == origin {
				allowed = true
				break
			}
		}
		if !allowed {
			c.Next()
			return
		}

		h := c.Writer.Header()
		if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Max-Age", cfg.MaxAge)
		if cfg.AllowCredentials && !wildcard {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

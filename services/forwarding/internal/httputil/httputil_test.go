package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(header, cookie string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	if cookie != "" {
		c.Request.AddCookie(&http.Cookie{Name: "sf_token", Value: cookie})
	}
	return c
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"Bearer", "Bearer abc", "abc"},
		{"регистр и пробелы", "bearer   abc ", "abc"},
		{"Basic", "Basic abc", ""},
		{"без токена", "Bearer", ""},
		{"пусто", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearerToken(newContext(tt.header, "")))
		})
	}
}

func TestExtractSessionToken_CookieFirst(t *testing.T) {
	assert.Equal(t, "from-cookie", ExtractSessionToken(newContext("Bearer from-header", "from-cookie"), "sf_token"))
	assert.Equal(t, "from-header", ExtractSessionToken(newContext("Bearer from-header", ""), "sf_token"))
	assert.Equal(t, "from-header", ExtractSessionToken(newContext("Bearer from-header", "from-cookie"), ""))
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/services/forwarding/internal/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockAuthenticator — мок Authenticator.
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, token string) (*jwt.Claims, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return nil, errors.New("AuthenticateFunc not set")
}

func claimsFor(subject, role string) *jwt.Claims {
	return &jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ID: "jti-1", Subject: subject},
		Kind:             jwt.KindSession,
		Role:             role,
	}
}

// ===== AuthMiddleware =====

func TestAuthMiddleware_Require(t *testing.T) {
	validator := &MockAuthenticator{AuthenticateFunc: func(_ context.Context, token string) (*jwt.Claims, error) {
		switch token {
		case "customer-token":
			return claimsFor("cust-1", jwt.RoleCustomer), nil
		case "host-token":
			return claimsFor("host-1", jwt.RoleHost), nil
		default:
			return nil, jwt.ErrInvalidToken
		}
	}}

	tests := []struct {
		name        string
		cookie      string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{"токен в cookie", "customer-token", "", http.StatusOK, "cust-1"},
		{"токен в Authorization", "", "Bearer customer-token", http.StatusOK, "cust-1"},
		{"без токена", "", "", http.StatusUnauthorized, ""},
		{"невалидный токен", "garbage", "", http.StatusUnauthorized, ""},
		{"чужая роль", "host-token", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(validator, "sf_token")

			var subject string
			r := gin.New()
			r.GET("/orders", mw.Require(jwt.RoleCustomer), func(c *gin.Context) {
				subject = httputil.SubjectID(c)
				assert.Equal(t, "jti-1", c.GetString(httputil.KeyJTI))
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sf_token", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantSubject, subject)
		})
	}
}

// ===== RateLimitMiddleware =====

func newRateLimited(t *testing.T, limit int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(NewRateLimitMiddleware(RateLimitConfig{Redis: client, Limit: limit, Window: time.Minute}).Handle())
	r.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, mr
}

func doGet(r http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BlocksExcessRequests(t *testing.T) {
	r, _ := newRateLimited(t, 3)

	for i := 0; i < 3; i++ {
		w := doGet(r, "10.0.0.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "запрос %d должен пройти", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := doGet(r, "10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// другой IP считается отдельно
	assert.Equal(t, http.StatusOK, doGet(r, "10.0.0.2:12345").Code)
}

func TestRateLimitMiddleware_FailOpen(t *testing.T) {
	r, mr := newRateLimited(t, 1)
	mr.Close()

	assert.Equal(t, http.StatusOK, doGet(r, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "10.0.0.1:1").Code)
}

// ===== Tracing =====

func TestTracing_PropagatesAndGeneratesIDs(t *testing.T) {
	r := gin.New()
	r.Use(Tracing())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderCorrelationID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, w.Header().Get(HeaderTraceID), 36, "сгенерирован UUID")
}

// ===== CORS / SecurityHeaders =====

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"http://localhost:3000"})))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDefaultCORSConfig_WildcardDisablesCredentials(t *testing.T) {
	assert.False(t, DefaultCORSConfig([]string{"*"}).AllowCredentials)
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name         string
		secureCookie bool
		wantHSTS     string
	}{
		{"локальная разработка по HTTP", false, ""},
		{"Secure-cookie включает HSTS", true, hstsValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SecurityHeaders(tt.secureCookie))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
			assert.Equal(t, tt.wantHSTS, w.Header().Get("Strict-Transport-Security"))
		})
	}
}

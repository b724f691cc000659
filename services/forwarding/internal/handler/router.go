package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/services/forwarding/internal/middleware"
)

const serviceName = "forwarding"

// ReadinessChecker — проверка зависимостей для /readyz.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — зависимости роутера. RateLimitMW и ReadinessCheck опциональны.
type RouterConfig struct {
	Orders         OrderService
	Hosts          HostService
	Auth           AuthService
	Verifier       WebhookVerifier
	Dispatcher     WebhookDispatcher
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	Cookie         CookieConfig
	AllowedOrigins []string
	ReadinessCheck ReadinessChecker
	Debug          bool
}

type Router struct {
	engine         *gin.Engine
	readinessCheck ReadinessChecker
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	engine.Use(middleware.SecurityHeaders(cfg.Cookie.Secure))
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(middleware.Tracing())
	engine.Use(metrics.GinMetricsMiddleware(serviceName))

	r := &Router{engine: engine, readinessCheck: cfg.ReadinessCheck}
	r.setupRoutes(cfg)
	return r
}

func (r *Router) setupRoutes(cfg RouterConfig) {
	r.engine.GET("/health", r.healthCheck)
	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	// без rate limit: шлюз ретраит доставку, подпись проверяет обработчик
	webhookHandler := NewWebhookHandler(cfg.Verifier, cfg.Dispatcher)
	r.engine.POST("/webhooks/payment-completed", webhookHandler.PaymentCompleted)

	v1 := r.engine.Group("/api/v1")
	if cfg.RateLimitMW != nil {
		v1.Use(cfg.RateLimitMW.Handle())
	}

	authHandler := NewAuthHandler(cfg.Auth, cfg.Cookie)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/request", authHandler.RequestCustomerAuth)
		authGroup.POST("/host/request", authHandler.RequestHostAuth)
		authGroup.GET("/verify/:token", authHandler.Verify)
		authGroup.POST("/logout", authHandler.Logout)
	}

	orderHandler := NewOrderHandler(cfg.Orders)
	orders := v1.Group("/orders", cfg.AuthMW.Require(jwt.RoleCustomer))
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.DELETE("/:id", orderHandler.DeleteOrder)
		orders.POST("/:id/confirm", orderHandler.ConfirmOrder)
		orders.POST("/:id/pay-shipment", orderHandler.PayShipment)
	}

	hostHandler := NewHostHandler(cfg.Hosts)
	host := v1.Group("/host", cfg.AuthMW.Require(jwt.RoleHost))
	{
		host.PUT("/availability", hostHandler.SetAvailability)
		host.GET("/orders/:id", hostHandler.GetOrder)
		host.POST("/orders/:id/items/:itemId/receive", hostHandler.ReceiveItem)
		host.POST("/orders/:id/items/:itemId/photos", hostHandler.AddItemPhotos)
		host.POST("/orders/:id/shipment-info", hostHandler.SubmitShipmentInfo)
	}
}

// Engine возвращает gin engine для http.Server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

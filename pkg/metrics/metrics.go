// Package metrics — Prometheus метрики сервиса и отдельный HTTP сервер для /metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/shipforward/pkg/logger"
)

// =============================================================================
// HTTP
// =============================================================================

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество запросов по сервису, маршруту и статусу",
		},
		[]string{"service", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method"},
	)
)

// =============================================================================
// Бизнес-метрики
// =============================================================================

var (
	// CheckoutSessionsTotal: fee_type = service|shipment, result = created|gateway_error.
	CheckoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Созданные и неудавшиеся checkout-сессии",
		},
		[]string{"fee_type", "result"},
	)

	// HostMatchesTotal: result = reserved|reused|no_host|service_unavailable|rematched.
	HostMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "host_matches_total",
			Help: "Результаты подбора хоста",
		},
		[]string{"result"},
	)

	// OrderTransitionsTotal считает только реально применённые переходы (CAS прошёл).
	OrderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Переходы статуса заказа",
		},
		[]string{"from", "to"},
	)

	// WebhookEventsTotal: result = applied|duplicate|noop|ignored|failed|invalid_signature.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Входящие события платёжного шлюза",
		},
		[]string{"fee_type", "result"},
	)

	// WebhookFailuresTotal — алерт: оплата прошла, а заказ не изменён.
	WebhookFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_failures_total",
			Help: "Ошибки обработки оплаченных событий, требующие ручной сверки",
		},
		[]string{"fee_type", "reason"},
	)

	ReservationsReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "host_reservations_released_total",
			Help: "Истёкшие резервирования хостов",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Отправленные письма по типу события",
		},
		[]string{"event_type", "result"},
	)
)

// =============================================================================
// Сервер метрик
// =============================================================================

// ReadinessChecker возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

type Server struct {
	httpServer     *http.Server
	readinessCheck ReadinessChecker
}

type Option func(*Server)

func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

func NewServer(addr string, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	mux.HandleFunc("/readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.readinessCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.readinessCheck(ctx); err != nil {
			// детали ошибки наружу не отдаём
			logger.Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not_ready"}`))
			return
		}
	}

	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// Handler отдаёт mux сервера (для тестов).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start блокируется до Shutdown.
func (s *Server) Start() error {
	logger.Info().Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// RecordRequest записывает метрики одного запроса.
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// GinMetricsMiddleware пишет requests_total и request_duration_seconds по шаблону маршрута.
func GinMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}
		RecordRequest(service, route, status, time.Since(start))
	}
}

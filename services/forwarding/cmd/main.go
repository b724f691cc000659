// Forwarding Service — маркетплейс пересылки посылок через хостов.
// HTTP API покупателей и хостов, вебхуки Stripe, outbox и уведомления по email.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"example.com/shipforward/pkg/config"
	"example.com/shipforward/pkg/db"
	"example.com/shipforward/pkg/healthcheck"
	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/pkg/tracing"
	"example.com/shipforward/services/forwarding/internal/auth"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/handler"
	"example.com/shipforward/services/forwarding/internal/matcher"
	"example.com/shipforward/services/forwarding/internal/middleware"
	"example.com/shipforward/services/forwarding/internal/notification"
	"example.com/shipforward/services/forwarding/internal/payment"
	"example.com/shipforward/services/forwarding/internal/repository"
	"example.com/shipforward/services/forwarding/internal/saga"
	"example.com/shipforward/services/forwarding/internal/webhook"
)

const serviceName = "forwarding"

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})

	log := logger.Logger()
	log.Info().Str("env", cfg.App.Env).Int("port", cfg.HTTP.Port).Msg("Запуск Forwarding Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Хранилища ===

	gdb, err := db.ConnectMySQL(ctx, cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if cfg.MySQL.AutoMigrate {
		if err := repository.AutoMigrate(gdb); err != nil {
			log.Fatal().Err(err).Msg("Ошибка миграции схемы")
		}
	}

	redisClient, err := db.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Не удалось подключиться к Redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")

	orderRepo := repository.NewOrderRepository(gdb)
	hostRepo := repository.NewHostRepository(gdb)
	customerRepo := repository.NewCustomerRepository(gdb)
	outboxRepo := outbox.NewRepository(gdb)
	transactor := db.NewTransactor(gdb)

	// === Сценарии заказа ===

	hostMatcher := matcher.New(hostRepo, transactor)
	coverage := matcher.NewCoverage(cfg.Service.OriginCountries, cfg.Service.DestinationCountries)
	gateway := payment.NewStripeGateway(cfg.Payment.SecretKey, nil)
	verifier := payment.NewWebhookVerifier(cfg.Payment.WebhookSecret)

	orderService := saga.NewService(saga.Deps{
		Orders:    orderRepo,
		Hosts:     hostRepo,
		Customers: customerRepo,
		Outbox:    outboxRepo,
		Tx:        transactor,
		Matcher:   hostMatcher,
		Coverage:  coverage,
		Gateway:   gateway,
		Fees: saga.FixedServiceFee{Fee: domain.Cost{
			Currency: cfg.Payment.ServiceFeeCurrency,
			Amount:   cfg.Payment.ServiceFeeAmount,
		}},
	}, saga.Config{
		SuccessURL:       cfg.Payment.SuccessURL,
		CancelURL:        cfg.Payment.CancelURL,
		CheckoutTTL:      cfg.Payment.CheckoutTTL,
		ReservationGrace: cfg.Service.ReservationGrace,
	})

	dispatcher := webhook.NewDispatcher(
		orderService,
		webhook.NewRedisDeduplicator(redisClient, cfg.Payment.WebhookDedupTTL),
		outboxRepo,
	)

	// === Аутентификация ===

	tokens, err := jwt.NewManager(jwt.Config{
		PrivateKeyPath:  cfg.Auth.PrivateKeyPath,
		PublicKeyPath:   cfg.Auth.PublicKeyPath,
		Issuer:          cfg.Auth.Issuer,
		VerificationTTL: cfg.Auth.VerificationTTL,
		SessionTTL:      cfg.Auth.SessionTTL,
	}, jwt.NewBlacklist(redisClient))
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации JWT")
	}

	notifier, err := notification.New(cfg.SMTP)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка настройки отправки писем")
	}
	authService := auth.NewService(
		customerRepo,
		hostRepo,
		tokens,
		notifier,
		auth.NewLinkLimiter(redisClient, cfg.Auth.LinkLimit, cfg.Auth.LinkWindow),
		cfg.Auth.VerifyURL,
	)

	// === Kafka: outbox и уведомления ===

	kafkaCfg := kafka.Config{Brokers: cfg.Kafka.Brokers, ConsumerGroup: cfg.Kafka.ConsumerGroup}
	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka producer")
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, kafka.TopicOrderEvents)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka consumer")
	}
	consumer.SetDLQProducer(producer)

	eventConsumer := notification.NewEventConsumer(notifier, customerRepo, hostRepo)
	outboxWorker := outbox.NewWorker(outboxRepo, producer, outbox.DefaultWorkerConfig())
	reservationWorker := saga.NewReservationWorker(orderService, saga.ReservationWorkerConfig{
		PollInterval: cfg.Service.ReservationSweep,
		BatchSize:    saga.DefaultReservationWorkerConfig().BatchSize,
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		outboxWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reservationWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := consumer.Consume(ctx, eventConsumer.Handle); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Kafka consumer остановлен с ошибкой")
		}
	}()

	// === HTTP ===

	readiness := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, gdb) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
		func(ctx context.Context) error { return healthcheck.CheckKafka(ctx, cfg.Kafka.Brokers) },
	)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), metrics.WithReadinessCheck(readiness))
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  redisClient,
			Limit:  cfg.RateLimit.Requests,
			Window: cfg.RateLimit.Window,
		})
		log.Info().Int("limit", cfg.RateLimit.Requests).Dur("window", cfg.RateLimit.Window).Msg("Rate limiting включён")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Orders:         orderService,
		Hosts:          orderService,
		Auth:           authService,
		Verifier:       verifier,
		Dispatcher:     dispatcher,
		AuthMW:         middleware.NewAuthMiddleware(authService, cfg.Auth.CookieName),
		RateLimitMW:    rateLimitMW,
		Cookie:         handler.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		ReadinessCheck: readiness,
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	<-ctx.Done()
	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// воркеры выходят по отмене ctx
	wg.Wait()

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka consumer")
	}
	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka producer")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Forwarding Service остановлен")
}

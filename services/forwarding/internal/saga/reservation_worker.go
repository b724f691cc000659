package saga

import (
	"context"
	"time"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
)

// ReservationWorkerConfig — настройки воркера истёкших резервов.
type ReservationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func DefaultReservationWorkerConfig() ReservationWorkerConfig {
	return ReservationWorkerConfig{
		PollInterval: time.Minute,
		BatchSize:    100,
	}
}

// ReservationWorker снимает резервы хостов, за которые так и не заплатили:
// checkout-сессия истекла, заказ остаётся DRAFTED и его можно подтвердить снова.
type ReservationWorker struct {
	service *Service
	cfg     ReservationWorkerConfig
}

func NewReservationWorker(service *Service, cfg ReservationWorkerConfig) *ReservationWorker {
	return &ReservationWorker{service: service, cfg: cfg}
}

// Run блокирует выполнение до отмены контекста.
func (w *ReservationWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск воркера резервов хостов")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка воркера резервов хостов")
			return
		case <-ticker.C:
			w.ReleaseExpired(ctx)
		}
	}
}

// ReleaseExpired снимает одну пачку истёкших резервов и возвращает их число.
func (w *ReservationWorker) ReleaseExpired(ctx context.Context) int {
	log := logger.FromContext(ctx)
	now := w.service.now()

	expired, err := w.service.hosts.ExpiredReservations(ctx, now, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка поиска истёкших резервов")
		return 0
	}

	released := 0
	for _, r := range expired {
		select {
		case <-ctx.Done():
			return released
		default:
		}

		ok, err := w.service.matcher.ReleaseExpired(ctx, r.OrderID, now)
		if err != nil {
			log.Error().Err(err).Str("order_id", r.OrderID).Str("host_id", r.HostID).Msg("Ошибка снятия резерва")
			continue
		}
		if !ok {
			log.Debug().Str("order_id", r.OrderID).Msg("Резерв продлён или уже снят, пропуск")
			continue
		}
		released++
		metrics.ReservationsReleasedTotal.Inc()
		log.Info().
			Str("order_id", r.OrderID).
			Str("host_id", r.HostID).
			Msg("Резерв хоста снят по истечении сессии оплаты")
	}
	return released
}

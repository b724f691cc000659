package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// Transactor — db.Transactor; вложенные вызовы выполняются во внешней транзакции.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SelectHost выбирает хоста с наименьшим числом заказов, при равенстве — с меньшим ID.
// Хосты, исчерпавшие лимит, пропускаются.
func SelectHost(loads []domain.HostLoad) (domain.HostLoad, bool) {
	var (
		best  domain.HostLoad
		found bool
	)
	for _, l := range loads {
		if !l.Host.Available || !l.HasCapacity() {
			continue
		}
		if !found || l.OrderCount < best.OrderCount ||
			(l.OrderCount == best.OrderCount && l.Host.ID < best.Host.ID) {
			best, found = l, true
		}
	}
	return best, found
}

// Matcher резервирует хостов под заказы. Вся работа с загрузкой хостов идёт
// под блокировкой строк hosts в одной транзакции.
type Matcher struct {
	hosts repository.HostRepository
	tx    Transactor
	now   func() time.Time
}

func New(hosts repository.HostRepository, tx Transactor) *Matcher {
	return &Matcher{hosts: hosts, tx: tx, now: time.Now}
}

// MatchHost резервирует хоста за черновиком до until. Живой резерв того же заказа
// продлевается, а не создаётся заново: повторный Confirm не занимает второй слот.
func (m *Matcher) MatchHost(ctx context.Context, order *domain.Order, until time.Time) (*domain.Host, error) {
	var host *domain.Host

	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := m.now()

		existing, err := m.hosts.FindReservation(ctx, order.ID)
		switch {
		case err == nil && existing.State == repository.ReservationAssigned:
			return domain.ErrOrderStateConflict
		case err == nil && existing.Active(now):
			if err := m.hosts.ExtendReservation(ctx, order.ID, until); err != nil {
				return err
			}
			host, err = m.hosts.Find(ctx, existing.HostID)
			if err == nil {
				metrics.HostMatchesTotal.WithLabelValues("reused").Inc()
			}
			return err
		case err == nil:
			if err := m.release(ctx, existing); err != nil {
				return err
			}
		case !errors.Is(err, repository.ErrReservationNotFound):
			return err
		}

		load, err := m.pick(ctx, order.OriginCountry, now)
		if err != nil {
			return err
		}
		if err := m.hosts.Reserve(ctx, &repository.Reservation{
			OrderID:       order.ID,
			HostID:        load.Host.ID,
			State:         repository.ReservationReserved,
			ReservedUntil: &until,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrOrderStateConflict
			}
			return err
		}
		if err := m.pauseIfFull(ctx, load); err != nil {
			return err
		}

		host = &load.Host
		metrics.HostMatchesTotal.WithLabelValues("reserved").Inc()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoHostAvailable) {
			metrics.HostMatchesTotal.WithLabelValues("no_host").Inc()
		}
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("host_id", host.ID).
		Time("reserved_until", until).
		Msg("Хост зарезервирован за заказом")
	return host, nil
}

// AssignHost превращает резерв в назначение. Если резерв истёк или снят,
// хост подбирается заново по свежему снимку. Возвращает ID назначенного хоста.
// Вызывается внутри транзакции смены статуса заказа.
func (m *Matcher) AssignHost(ctx context.Context, order *domain.Order, hostID string) (string, error) {
	var assigned string

	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := m.now()

		err := m.hosts.ConfirmAssignment(ctx, order.ID, hostID, now)
		if err == nil {
			assigned = hostID
			return nil
		}
		if !errors.Is(err, repository.ErrReservationNotFound) {
			return err
		}

		existing, err := m.hosts.FindReservation(ctx, order.ID)
		switch {
		case err == nil && existing.State == repository.ReservationAssigned:
			assigned = existing.HostID
			return nil
		case err == nil:
			if err := m.release(ctx, existing); err != nil {
				return err
			}
		case !errors.Is(err, repository.ErrReservationNotFound):
			return err
		}

		load, err := m.pick(ctx, order.OriginCountry, now)
		if err != nil {
			return err
		}
		if err := m.hosts.Reserve(ctx, &repository.Reservation{
			OrderID: order.ID,
			HostID:  load.Host.ID,
			State:   repository.ReservationAssigned,
		}); err != nil {
			return err
		}
		if err := m.pauseIfFull(ctx, load); err != nil {
			return err
		}

		assigned = load.Host.ID
		metrics.HostMatchesTotal.WithLabelValues("rematched").Inc()
		logger.Ctx(ctx).Warn().
			Str("order_id", order.ID).
			Str("reserved_host_id", hostID).
			Str("host_id", assigned).
			Msg("Резерв хоста истёк до оплаты, назначен другой хост")
		return nil
	})
	if err != nil {
		return "", err
	}
	return assigned, nil
}

// Release снимает резерв заказа, например когда шлюз не создал сессию.
// Назначенный заказ и отсутствие резерва — не ошибка.
func (m *Matcher) Release(ctx context.Context, orderID string) error {
	return m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := m.hosts.FindReservation(ctx, orderID)
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.State == repository.ReservationAssigned {
			return nil
		}
		return m.release(ctx, existing)
	})
}

// ReleaseExpired снимает резерв, истёкший к now. Резерв, который повторный Confirm
// продлил или заменил после выборки истёкших, остаётся. false — снимать было нечего.
func (m *Matcher) ReleaseExpired(ctx context.Context, orderID string, now time.Time) (bool, error) {
	var released bool

	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := m.hosts.FindReservation(ctx, orderID)
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.Active(now) {
			return nil
		}

		// условие на reserved_until проверяется ещё раз в самом DELETE
		if err := m.hosts.DeleteExpiredReservation(ctx, orderID, now); err != nil {
			if errors.Is(err, repository.ErrReservationNotFound) {
				return nil
			}
			return err
		}
		released = true
		return m.hosts.ResumeFromCapacity(ctx, existing.HostID)
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

func (m *Matcher) release(ctx context.Context, r *repository.Reservation) error {
	if err := m.hosts.DeleteReservation(ctx, r.OrderID); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}
		return err
	}
	return m.hosts.ResumeFromCapacity(ctx, r.HostID)
}

func (m *Matcher) pick(ctx context.Context, country string, now time.Time) (domain.HostLoad, error) {
	loads, err := m.hosts.LockAvailableInCountry(ctx, country, now)
	if err != nil {
		return domain.HostLoad{}, err
	}
	load, ok := SelectHost(loads)
	if !ok {
		return domain.HostLoad{}, fmt.Errorf("%w: %s", domain.ErrNoHostAvailable, country)
	}
	return load, nil
}

func (m *Matcher) pauseIfFull(ctx context.Context, load domain.HostLoad) error {
	if !load.FillsCapacity() {
		return nil
	}
	if err := m.hosts.PauseAtCapacity(ctx, load.Host.ID); err != nil {
		return fmt.Errorf("ошибка снятия хоста %s с подбора: %w", load.Host.ID, err)
	}
	return nil
}

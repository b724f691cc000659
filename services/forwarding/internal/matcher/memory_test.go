package matcher

import (
	"context"
	"sync"
	"time"

	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// memoryHosts — HostRepository в памяти. Транзакция берёт общий мьютекс
// (как FOR UPDATE на строки хостов страны) и откатывает изменения при ошибке.
type memoryHosts struct {
	mu           sync.Mutex
	hosts        map[string]*memoryHost
	reservations map[string]repository.Reservation
}

type memoryHost struct {
	domain.Host
	capacityPaused bool
}

func newMemoryHosts(hosts ...domain.Host) *memoryHosts {
	s := &memoryHosts{hosts: map[string]*memoryHost{}, reservations: map[string]repository.Reservation{}}
	for _, h := range hosts {
		s.hosts[h.ID] = &memoryHost{Host: h}
	}
	return s
}

func (s *memoryHosts) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hosts := make(map[string]*memoryHost, len(s.hosts))
	for id, h := range s.hosts {
		cp := *h
		hosts[id] = &cp
	}
	reservations := make(map[string]repository.Reservation, len(s.reservations))
	for id, r := range s.reservations {
		reservations[id] = r
	}

	if err := fn(ctx); err != nil {
		s.hosts, s.reservations = hosts, reservations
		return err
	}
	return nil
}

func (s *memoryHosts) Add(_ context.Context, h *domain.Host) error {
	s.hosts[h.ID] = &memoryHost{Host: *h}
	return nil
}

func (s *memoryHosts) Find(_ context.Context, id string) (*domain.Host, error) {
	h, ok := s.hosts[id]
	if !ok {
		return nil, domain.ErrHostNotFound
	}
	cp := h.Host
	return &cp, nil
}

func (s *memoryHosts) FindByEmail(context.Context, string) (*domain.Host, error) {
	return nil, domain.ErrHostNotFound
}

func (s *memoryHosts) SetAvailability(_ context.Context, id string, available bool) error {
	s.hosts[id].Available = available
	s.hosts[id].capacityPaused = false
	return nil
}

func (s *memoryHosts) LockAvailableInCountry(_ context.Context, country string, now time.Time) ([]domain.HostLoad, error) {
	var loads []domain.HostLoad
	for _, h := range s.hosts {
		if h.Address.Country != country || !h.Available {
			continue
		}
		count := 0
		for _, r := range s.reservations {
			if r.HostID == h.ID && r.Active(now) {
				count++
			}
		}
		loads = append(loads, domain.HostLoad{Host: h.Host, OrderCount: count})
	}
	return loads, nil
}

func (s *memoryHosts) PauseAtCapacity(_ context.Context, id string) error {
	s.hosts[id].Available = false
	s.hosts[id].capacityPaused = true
	return nil
}

func (s *memoryHosts) ResumeFromCapacity(_ context.Context, id string) error {
	if s.hosts[id].capacityPaused {
		s.hosts[id].Available = true
		s.hosts[id].capacityPaused = false
	}
	return nil
}

func (s *memoryHosts) Reserve(_ context.Context, r *repository.Reservation) error {
	if _, ok := s.reservations[r.OrderID]; ok {
		return repository.ErrDuplicate
	}
	s.reservations[r.OrderID] = *r
	return nil
}

func (s *memoryHosts) FindReservation(_ context.Context, orderID string) (*repository.Reservation, error) {
	r, ok := s.reservations[orderID]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &r, nil
}

func (s *memoryHosts) ExtendReservation(_ context.Context, orderID string, until time.Time) error {
	r, ok := s.reservations[orderID]
	if !ok {
		return repository.ErrReservationNotFound
	}
	r.ReservedUntil = &until
	s.reservations[orderID] = r
	return nil
}

func (s *memoryHosts) ConfirmAssignment(_ context.Context, orderID, hostID string, now time.Time) error {
	r, ok := s.reservations[orderID]
	if !ok || r.HostID != hostID || r.State != repository.ReservationReserved || !r.Active(now) {
		return repository.ErrReservationNotFound
	}
	r.State, r.ReservedUntil = repository.ReservationAssigned, nil
	s.reservations[orderID] = r
	return nil
}

func (s *memoryHosts) DeleteReservation(_ context.Context, orderID string) error {
	if _, ok := s.reservations[orderID]; !ok {
		return repository.ErrReservationNotFound
	}
	delete(s.reservations, orderID)
	return nil
}

func (s *memoryHosts) DeleteExpiredReservation(_ context.Context, orderID string, now time.Time) error {
	r, ok := s.reservations[orderID]
	if !ok || r.State != repository.ReservationReserved || r.Active(now) {
		return repository.ErrReservationNotFound
	}
	delete(s.reservations, orderID)
	return nil
}

func (s *memoryHosts) ExpiredReservations(_ context.Context, now time.Time, limit int) ([]*repository.Reservation, error) {
	var out []*repository.Reservation
	for _, r := range s.reservations {
		if r.State == repository.ReservationReserved && !r.Active(now) && len(out) < limit {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

// Package circuitbreaker — обёртка над sony/gobreaker для вызовов внешних API
// (платёжный шлюз). При открытом breaker вызов отклоняется сразу, без ожидания таймаута.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/shipforward/pkg/logger"
)

// ErrOpen — breaker открыт или в half-open уже исчерпан лимит пробных запросов.
var ErrOpen = errors.New("внешний сервис временно недоступен (circuit breaker)")

type Settings struct {
	MaxRequests  uint32        // запросов в half-open
	Interval     time.Duration // сброс счётчиков в closed
	Timeout      time.Duration // время в open до half-open
	FailureRatio float64
	MinRequests  uint32
}

func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker считает сбоями только ошибки, для которых isFailure возвращает true.
// Остальные ошибки (например, отказ в валидации запроса) возвращаются вызывающему,
// но на состояние breaker не влияют.
type Breaker struct {
	cb        *gobreaker.CircuitBreaker[any]
	isFailure func(error) bool
}

func New(name string, isFailure func(error) bool) *Breaker {
	return NewWithSettings(name, DefaultSettings(), isFailure)
}

func NewWithSettings(name string, s Settings, isFailure func(error) bool) *Breaker {
	if isFailure == nil {
		isFailure = func(error) bool { return true }
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log := logger.Logger()
			ev := log.Info()
			if to == gobreaker.StateOpen {
				ev = log.Warn()
			}
			ev.Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Смена состояния Circuit Breaker")
		},
	})

	return &Breaker{cb: cb, isFailure: isFailure}
}

// Execute выполняет fn через breaker.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var (
		result T
		callErr error
	)

	_, cbErr := b.cb.Execute(func() (any, error) {
		result, callErr = fn()
		if callErr != nil && b.isFailure(callErr) {
			return nil, callErr
		}
		return nil, nil
	})

	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrOpen
	}
	return result, callErr
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

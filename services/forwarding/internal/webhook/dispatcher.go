// Package webhook разбирает оплаченные checkout-события и запускает нужное продолжение саги.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/saga"
)

const aggregatePayment = "payment"

// Continuations — продолжения саги после оплаты (saga.Service).
type Continuations interface {
	HandleServiceFeePaid(ctx context.Context, sessionID string, md domain.ServiceFeeMetadata) (saga.Outcome, error)
	HandleShipmentFeePaid(ctx context.Context, sessionID string, md domain.ShipmentFeeMetadata) (saga.Outcome, error)
}

// Deduplicator — отметка обработанных событий шлюза.
type Deduplicator interface {
	Acquire(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Result — что произошло с событием.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultNoop      Result = "noop"
	ResultDuplicate Result = "duplicate"
	ResultFailed    Result = "failed"
)

type Dispatcher struct {
	saga   Continuations
	dedup  Deduplicator
	outbox outbox.Repository
	now    func() time.Time
}

func NewDispatcher(continuations Continuations, dedup Deduplicator, outboxRepo outbox.Repository) *Dispatcher {
	return &Dispatcher{saga: continuations, dedup: dedup, outbox: outboxRepo, now: time.Now}
}

// Dispatch обрабатывает оплаченный checkout. Оплата к этому моменту уже списана:
// любая ошибка логируется, попадает в метрику алерта и в outbox для ручной сверки.
func (d *Dispatcher) Dispatch(ctx context.Context, checkout *domain.CompletedCheckout) (Result, error) {
	ctx = logger.WithCorrelationID(ctx, checkout.EventID)
	log := logger.FromContext(ctx)

	md, err := domain.ParseCheckoutMetadata(checkout.Metadata)
	if err != nil {
		d.fail(ctx, checkout, "", "unrecognized_payload", err)
		return ResultFailed, err
	}
	feeType := strings.ToLower(string(md.FeeType()))

	if checkout.EventID != "" && d.dedup != nil {
		acquired, err := d.dedup.Acquire(ctx, checkout.EventID)
		switch {
		case err != nil:
			// продолжения идемпотентны, без Redis событие всё равно обрабатывается
			log.Warn().Err(err).Msg("Дедупликация вебхука недоступна")
		case !acquired:
			metrics.WebhookEventsTotal.WithLabelValues(feeType, string(ResultDuplicate)).Inc()
			log.Info().Str("session_id", checkout.SessionID).Msg("Повторное событие шлюза пропущено")
			return ResultDuplicate, nil
		}
	}

	var outcome saga.Outcome
	switch m := md.(type) {
	case domain.ServiceFeeMetadata:
		outcome, err = d.saga.HandleServiceFeePaid(ctx, checkout.SessionID, m)
	case domain.ShipmentFeeMetadata:
		outcome, err = d.saga.HandleShipmentFeePaid(ctx, checkout.SessionID, m)
	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnrecognizedPayload, md)
	}

	if err != nil {
		if checkout.EventID != "" && d.dedup != nil {
			if relErr := d.dedup.Release(ctx, checkout.EventID); relErr != nil {
				log.Warn().Err(relErr).Msg("Не удалось снять отметку события")
			}
		}
		d.fail(ctx, checkout, feeType, failureReason(err), err)
		return ResultFailed, err
	}

	result := ResultApplied
	if outcome == saga.OutcomeNoop {
		result = ResultNoop
	}
	metrics.WebhookEventsTotal.WithLabelValues(feeType, string(result)).Inc()
	log.Info().
		Str("fee_type", feeType).
		Str("session_id", checkout.SessionID).
		Str("result", string(result)).
		Msg("Событие оплаты обработано")
	return result, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnrecognizedPayload):
		return "unrecognized_payload"
	case errors.Is(err, domain.ErrReconciliationRequired):
		return "no_host_available"
	case errors.Is(err, domain.ErrDuplicatePayment):
		return "duplicate_payment"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "order_not_found"
	default:
		return "internal"
	}
}

func (d *Dispatcher) fail(ctx context.Context, checkout *domain.CompletedCheckout, feeType, reason string, cause error) {
	log := logger.FromContext(ctx)
	if feeType == "" {
		feeType = "unknown"
	}

	metrics.WebhookEventsTotal.WithLabelValues(feeType, string(ResultFailed)).Inc()
	metrics.WebhookFailuresTotal.WithLabelValues(feeType, reason).Inc()
	log.Error().
		Err(cause).
		Str("fee_type", feeType).
		Str("reason", reason).
		Str("session_id", checkout.SessionID).
		Interface("metadata", checkout.Metadata).
		Msg("Оплаченное событие не обработано, требуется ручная сверка")

	// ID сессии Stripe длиннее колонки aggregate_id
	aggregateID := checkout.Metadata[domain.MetadataOrderID]
	if aggregateID == "" {
		aggregateID = checkout.EventID
	}
	rec, err := outbox.NewRecord(ctx, aggregatePayment, aggregateID, domain.EventPaymentReconciliation, kafka.TopicReconciliation,
		domain.ReconciliationEvent{
			EventID:    checkout.EventID,
			SessionID:  checkout.SessionID,
			OrderID:    checkout.Metadata[domain.MetadataOrderID],
			Metadata:   checkout.Metadata,
			Reason:     reason,
			OccurredAt: d.now().UTC(),
		})
	if err == nil {
		err = d.outbox.Create(ctx, rec)
	}
	if err != nil {
		log.Error().Err(err).Msg("Не удалось записать событие сверки в outbox")
	}
}

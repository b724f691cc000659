package saga

import "example.com/shipforward/services/forwarding/internal/domain"

// FeePolicy — расчёт сервисного сбора за подбор хоста.
type FeePolicy interface {
	ServiceFee(order *domain.Order) domain.Cost
}

// FixedServiceFee — одинаковый сбор для любого заказа.
type FixedServiceFee struct {
	Fee domain.Cost
}

func (f FixedServiceFee) ServiceFee(*domain.Order) domain.Cost {
	return f.Fee
}

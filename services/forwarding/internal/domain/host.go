package domain

// Host — человек, принимающий посылки покупателей в стране магазинов.
type Host struct {
	ID        string
	Email     string
	Name      string
	Address   Address
	Available bool
	MaxOrders int      // 0 — без ограничения
	OrderIDs  []string // назначенные заказы в порядке назначения
}

// HostLoad — снимок хоста для подбора: число заказов включает активные резервы.
type HostLoad struct {
	Host       Host
	OrderCount int
}

// HasCapacity — хост может принять ещё один заказ.
func (h HostLoad) HasCapacity() bool {
	return h.Host.MaxOrders == 0 || h.OrderCount < h.Host.MaxOrders
}

// FillsCapacity — ещё один заказ займёт последний слот.
func (h HostLoad) FillsCapacity() bool {
	return h.Host.MaxOrders > 0 && h.OrderCount+1 >= h.Host.MaxOrders
}

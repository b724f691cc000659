package domain

import "errors"

// Ошибки поиска.
var (
	ErrOrderNotFound    = errors.New("заказ не найден")
	ErrHostNotFound     = errors.New("хост не найден")
	ErrCustomerNotFound = errors.New("покупатель не найден")
	ErrItemNotFound     = errors.New("посылка не найдена")
)

// Нарушение жизненного цикла. Автоматически не повторяются.
var (
	ErrOrderStateConflict  = errors.New("операция недоступна в текущем статусе заказа")
	ErrItemAlreadyReceived = errors.New("посылка уже отмечена как полученная")
)

// Отказ в обслуживании. Заказ переводится в REJECTED.
var (
	ErrServiceUnavailable = errors.New("направление не обслуживается")
	ErrNoHostAvailable    = errors.New("нет доступного хоста в стране отправления")
)

// Платёжный шлюз и вебхуки.
var (
	ErrPaymentGateway         = errors.New("ошибка платёжного шлюза")
	ErrUnrecognizedPayload    = errors.New("нераспознанные метаданные платежа")
	ErrReconciliationRequired = errors.New("оплата получена, но заказ не обновлён: требуется ручная сверка")
	// ErrDuplicatePayment — оплачена вторая сессия того же этапа, деньги нужно вернуть.
	ErrDuplicatePayment = errors.New("повторная оплата этапа заказа другой checkout-сессией")
)

// Валидация входных данных.
var (
	ErrInvalidCustomerID = errors.New("некорректный идентификатор покупателя")
	ErrInvalidEmail      = errors.New("некорректный email")
	ErrInvalidCountry    = errors.New("код страны должен быть в формате ISO 3166-1 alpha-3")
	ErrSameCountry       = errors.New("страна отправления совпадает со страной назначения")
	ErrInvalidAddress    = errors.New("адрес назначения заполнен не полностью")
	ErrEmptyOrderItems   = errors.New("заказ должен содержать хотя бы одну посылку")
	ErrInvalidItemTitle  = errors.New("название посылки не может быть пустым")
	ErrInvalidItemWeight = errors.New("вес посылки не может быть отрицательным")
	ErrInvalidWeight     = errors.New("вес должен быть больше нуля")
	ErrInvalidCost       = errors.New("стоимость должна быть больше нуля")
	ErrInvalidCurrency   = errors.New("валюта должна быть кодом ISO 4217")
	ErrInvalidPhotos     = errors.New("нужно передать хотя бы одну ссылку на фото")
)

// IsValidation — ошибка некорректных входных данных (HTTP 400).
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidCustomerID, ErrInvalidEmail, ErrInvalidCountry, ErrSameCountry, ErrInvalidAddress,
		ErrEmptyOrderItems, ErrInvalidItemTitle, ErrInvalidItemWeight, ErrInvalidWeight, ErrInvalidCost,
		ErrInvalidCurrency, ErrInvalidPhotos,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

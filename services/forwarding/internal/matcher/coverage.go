// Package matcher — подбор хоста для заказа: проверка зоны обслуживания,
// выбор наименее загруженного хоста и его резервирование в транзакции.
package matcher

import "example.com/shipforward/services/forwarding/internal/domain"

const anyCountry = "*"

// Coverage — статический список стран отправления и назначения.
type Coverage struct {
	origins      map[string]struct{}
	destinations map[string]struct{}
}

// NewCoverage принимает списки ISO-кодов; "*" в списке разрешает любую страну.
func NewCoverage(origins, destinations []string) Coverage {
	return Coverage{origins: toSet(origins), destinations: toSet(destinations)}
}

// CheckServiceAvailability — обслуживается ли направление. Внутри одной страны — нет.
func (c Coverage) CheckServiceAvailability(origin, destination string) bool {
	origin = domain.NormalizeCountry(origin)
	destination = domain.NormalizeCountry(destination)
	if origin == "" || destination == "" || origin == destination {
		return false
	}
	return contains(c.origins, origin) && contains(c.destinations, destination)
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[domain.NormalizeCountry(code)] = struct{}{}
	}
	return set
}

func contains(set map[string]struct{}, code string) bool {
	if _, ok := set[anyCountry]; ok {
		return true
	}
	_, ok := set[code]
	return ok
}

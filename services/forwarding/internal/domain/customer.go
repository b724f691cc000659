package domain

import (
	"net/mail"
	"strings"
)

// Customer создаётся при первом запросе входа по email.
type Customer struct {
	ID       string
	Email    string
	OrderIDs []string
}

// NormalizeEmail проверяет адрес и приводит его к нижнему регистру.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

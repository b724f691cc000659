package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/auth"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleError переводит ошибку сервиса в HTTP ответ.
func HandleError(c *gin.Context, err error, method string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("method", method).Msg("HandleError вызван с nil ошибкой")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Внутренняя ошибка сервера"})
		return
	}

	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", method).Msg("Внутренняя ошибка")
		message = "Внутренняя ошибка сервера"
	} else if status == http.StatusBadGateway {
		log.Error().Err(err).Str("method", method).Msg("Ошибка платёжного шлюза")
		message = "Платёжный шлюз недоступен, повторите попытку позже"
	}

	c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrHostNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrOrderStateConflict),
		errors.Is(err, domain.ErrItemAlreadyReceived):
		return http.StatusConflict, "state_conflict"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, domain.ErrNoHostAvailable):
		return http.StatusServiceUnavailable, "no_host_available"
	case errors.Is(err, domain.ErrPaymentGateway):
		return http.StatusBadGateway, "payment_gateway_error"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrTooManyRequests):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

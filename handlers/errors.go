package handlers

import (
	"errors"
	"net/http"

	"roomrental/services/booking"
	"roomrental/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[booking.Kind]int{
	booking.KindValidation:           http.StatusBadRequest,
	booking.KindAuthorization:        http.StatusForbidden,
	booking.KindNotFound:             http.StatusNotFound,
	booking.KindConflict:             http.StatusConflict,
	booking.KindAuthorityUnavailable: http.StatusBadGateway,
	booking.KindInvalidSignature:     http.StatusBadRequest,
}

// statusFor maps a booking error kind to its HTTP status.
func statusFor(err error) int {
	if status, ok := kindStatus[booking.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, status, "Internal Server Error", "")
		return
	}

	message := err.Error()
	var be *booking.Error
	if errors.As(err, &be) {
		message = be.Message
	}
	if booking.IsRetryable(err) {
		utils.JSONRetryableError(c, status, message, string(booking.KindOf(err)))
		return
	}
	utils.JSONError(c, status, message, string(booking.KindOf(err)))
}

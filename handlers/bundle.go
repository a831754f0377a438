package handlers

import (
	"roomrental/utils"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	Tokens *utils.TokenService

	// Booking endpoints
	CreateBooking  gin.HandlerFunc
	VerifyBooking  gin.HandlerFunc
	CancelBooking  gin.HandlerFunc
	GetBooking     gin.HandlerFunc
	ListMyBookings gin.HandlerFunc

	// Admin endpoints
	AdminListBookings gin.HandlerFunc

	// Payment authority webhook
	PaymentAuthorityWebhook gin.HandlerFunc

	// Real-time channel
	SocketConnect gin.HandlerFunc

	Health gin.HandlerFunc
}

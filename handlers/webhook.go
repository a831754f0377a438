package handlers

import (
	"context"
	"io"
	"net/http"

	"roomrental/services/booking"
	"roomrental/services/webhook"
	"roomrental/utils"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody matches the payload ceiling the payment authority documents.
const maxWebhookBody = 65536

type WebhookIngestor interface {
	Ingest(ctx context.Context, rawPayload []byte, signatureHeader string) (*webhook.Result, error)
}

type WebhookHandler struct {
	Ingestor WebhookIngestor
}

func NewWebhookHandler(ingestor WebhookIngestor) *WebhookHandler {
	return &WebhookHandler{Ingestor: ingestor}
}

// PaymentAuthorityWebhook accepts a signed event from the payment authority.
// Anything past signature verification is acknowledged with 200 unless it
// failed internally, so the authority only redelivers what may succeed later.
func (h *WebhookHandler) PaymentAuthorityWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Unreadable webhook body", err.Error())
		return
	}

	res, err := h.Ingestor.Ingest(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case booking.IsKind(err, booking.KindInvalidSignature):
		utils.JSONError(c, http.StatusBadRequest, "Invalid signature", "")
		return
	case err != nil && booking.KindOf(err) == booking.KindInternal:
		utils.JSONError(c, http.StatusInternalServerError, "Webhook processing failed", "")
		return
	}

	body := gin.H{"received": true}
	if res != nil {
		body["ignored"] = res.Ignored
		body["replayed"] = res.Replayed
		if res.Outcome != "" {
			body["outcome"] = res.Outcome
		}
	}
	c.JSON(http.StatusOK, body)
}

package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"voltpay/config"
	"voltpay/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentWebhookHandler is pure ingress: it verifies the gateway signature,
// hands the raw event to the payment queue and acknowledges. Settlement and
// its retries happen in the consumer, never inline with the webhook.
type PaymentWebhookHandler struct {
	sink  service.QueueSink
	queue string
	cfg   *config.PaymentConfig
}

func NewPaymentWebhookHandler(sink service.QueueSink, queue string, cfg *config.PaymentConfig) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{sink: sink, queue: queue, cfg: cfg}
}

func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.WebhookSecret != "" {
		sig := c.GetHeader("X-Webhook-Signature")
		if !h.verifySignature(body, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}
	// Reject bodies that are not even JSON; everything else is for the
	// consumer to classify.
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.sink.PublishToQueue(c.Request.Context(), h.queue, json.RawMessage(body)); err != nil {
		// The gateway will retry the webhook.
		log.Printf("[webhook] enqueue payment event failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enqueue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/service"
)

// LineWebhookHandler receives inbound messaging events.
type LineWebhookHandler struct {
	service       *service.LineWebhookService
	channelSecret string
	logger        *zap.Logger
}

// NewLineWebhookHandler constructs handler.
func NewLineWebhookHandler(webhookService *service.LineWebhookService, channelSecret string, logger *zap.Logger) *LineWebhookHandler {
	return &LineWebhookHandler{service: webhookService, channelSecret: channelSecret, logger: logger}
}

type webhookPayload struct {
	Events []service.WebhookEvent `json:"events"`
}

// Handle POST /webhook/line. The raw body is authenticated with the
// channel secret before parsing; deliveries are always acknowledged with
// 200 so the platform does not retry.
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()
	if !h.validSignature(body, c.Get("X-Line-Signature")) {
		h.logger.Warn("line webhook signature mismatch")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "invalid signature"})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("line webhook payload unreadable", zap.Error(err))
		return c.JSON(fiber.Map{"message": "ok"})
	}

	h.service.HandleEvents(c.UserContext(), payload.Events)
	return c.JSON(fiber.Map{"message": "ok"})
}

func (h *LineWebhookHandler) validSignature(body []byte, signature string) bool {
	if h.channelSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

type WebhookHandler struct {
	dispatcher *services.WebhookDispatcher
	secret     string
}

func NewWebhookHandler(dispatcher *services.WebhookDispatcher, secret string) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, secret: secret}
}

// HandlePaystack receives gateway event deliveries. The signature is
// checked over the raw body before anything is parsed. A 200 tells the
// gateway to stop retrying, so every understood outcome returns 200
// and only processing failures return 500.
func (h *WebhookHandler) HandlePaystack(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	signature := c.Request().Header.Get("x-paystack-signature")
	if !services.VerifyWebhookSignature(h.secret, signature, raw) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	outcome, err := h.dispatcher.HandleEvent(c.Request().Context(), raw)
	if err != nil && outcome == models.GatewayEventFailed {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(outcome)})
}

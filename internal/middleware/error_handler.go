package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"foodstash_app_echo/internal/services"
)

// CustomErrorHandler translates the domain error taxonomy to JSON HTTP
// responses. User-fixable failures (invalid state, invalid terms) get
// 4xx codes; gateway failures surface as 502 so callers can retry.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	var httpErr *echo.HTTPError
	var gatewayErr *services.GatewayError

	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.Is(err, services.ErrNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, services.ErrInvalidState):
		code = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrInvalidPlanTerms):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &gatewayErr):
		code = http.StatusBadGateway
		message = gatewayErr.Error()
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if sendErr := c.JSON(code, map[string]string{"error": message}); sendErr != nil {
		c.Logger().Error(sendErr)
	}
}

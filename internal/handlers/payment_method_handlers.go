package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

type PaymentMethodHandler struct {
	db      *gorm.DB
	gateway services.Gateway
}

func NewPaymentMethodHandler(db *gorm.DB, gateway services.Gateway) *PaymentMethodHandler {
	return &PaymentMethodHandler{db: db, gateway: gateway}
}

func (h *PaymentMethodHandler) ListPaymentMethods(c echo.Context) error {
	var methods []models.PaymentMethod
	err := h.db.WithContext(c.Request().Context()).
		Where("user_id = ?", currentUserID(c)).
		Order("created_at asc").
		Find(&methods).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, methods)
}

// CreatePaymentMethod stores the reusable authorization behind a
// completed gateway charge as a charge instrument for auto debits
func (h *PaymentMethodHandler) CreatePaymentMethod(c echo.Context) error {
	var req CreatePaymentMethodRequest
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	tx, err := h.gateway.VerifyTransaction(c.Request().Context(), req.Reference)
	if err != nil {
		return err
	}
	if tx.Status != "success" || tx.AuthorizationCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction has no reusable authorization")
	}

	userID := currentUserID(c)

	var method models.PaymentMethod
	err = h.db.Transaction(func(db *gorm.DB) error {
		dbErr := db.Where("user_id = ? AND authorization_code = ?", userID, tx.AuthorizationCode).
			First(&method).Error
		if dbErr == nil {
			return nil
		}
		if !errors.Is(dbErr, gorm.ErrRecordNotFound) {
			return dbErr
		}

		var existing int64
		if dbErr := db.Model(&models.PaymentMethod{}).Where("user_id = ?", userID).Count(&existing).Error; dbErr != nil {
			return dbErr
		}

		method = models.PaymentMethod{
			UserID:            userID,
			AuthorizationCode: tx.AuthorizationCode,
			Last4:             tx.Last4,
			Bank:              tx.Bank,
			CardType:          tx.CardType,
			IsDefault:         req.MakeDefault || existing == 0,
		}
		if method.IsDefault {
			if dbErr := db.Model(&models.PaymentMethod{}).
				Where("user_id = ?", userID).
				Update("is_default", false).Error; dbErr != nil {
				return dbErr
			}
		}
		return db.Create(&method).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, method)
}

// SetDefaultPaymentMethod makes one instrument the default, clearing
// the flag on the user's other instruments in the same transaction
func (h *PaymentMethodHandler) SetDefaultPaymentMethod(c echo.Context) error {
	methodID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	userID := currentUserID(c)

	var method models.PaymentMethod
	err = h.db.Transaction(func(db *gorm.DB) error {
		dbErr := db.Where("user_id = ?", userID).First(&method, methodID).Error
		if errors.Is(dbErr, gorm.ErrRecordNotFound) {
			return services.ErrNotFound
		}
		if dbErr != nil {
			return dbErr
		}
		if dbErr := db.Model(&models.PaymentMethod{}).
			Where("user_id = ? AND id <> ?", userID, method.ID).
			Update("is_default", false).Error; dbErr != nil {
			return dbErr
		}
		method.IsDefault = true
		return db.Save(&method).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, method)
}

func (h *PaymentMethodHandler) DeletePaymentMethod(c echo.Context) error {
	methodID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	userID := currentUserID(c)

	var method models.PaymentMethod
	err = h.db.Where("user_id = ?", userID).First(&method, methodID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}

	// Plans still pointing at this instrument fall back to the user's
	// default at charge time
	if err := h.db.Delete(&method).Error; err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

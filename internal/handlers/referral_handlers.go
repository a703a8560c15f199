package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

// ReferralHandler exposes the admin view over marketers, referrals and
// commission payouts
type ReferralHandler struct {
	db *gorm.DB
}

func NewReferralHandler(db *gorm.DB) *ReferralHandler {
	return &ReferralHandler{db: db}
}

type CreateMarketerRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ReferralCode   string  `json:"referral_code"`
	CommissionRate float64 `json:"commission_rate"`
}

func (h *ReferralHandler) CreateMarketer(c echo.Context) error {
	var req CreateMarketerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.ReferralCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and referral_code are required")
	}
	if req.CommissionRate < 0 || req.CommissionRate > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "commission_rate must be between 0 and 1")
	}

	marketer := models.Marketer{
		Name:           req.Name,
		Email:          req.Email,
		ReferralCode:   req.ReferralCode,
		CommissionRate: req.CommissionRate,
		IsActive:       true,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&marketer).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, marketer)
}

func (h *ReferralHandler) ListReferrals(c echo.Context) error {
	query := h.db.WithContext(c.Request().Context()).
		Preload("Marketer").
		Preload("User").
		Order("created_at desc")
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var referrals []models.Referral
	if err := query.Find(&referrals).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, referrals)
}

func (h *ReferralHandler) ListCommissions(c echo.Context) error {
	query := h.db.WithContext(c.Request().Context()).
		Preload("Marketer").
		Order("created_at desc")
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if marketerID := c.QueryParam("marketer_id"); marketerID != "" {
		query = query.Where("marketer_id = ?", marketerID)
	}

	var commissions []models.Commission
	if err := query.Find(&commissions).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commissions)
}

// ApproveCommission moves a pending commission to approved
func (h *ReferralHandler) ApproveCommission(c echo.Context) error {
	commissionID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var commission models.Commission
	err = h.db.WithContext(c.Request().Context()).First(&commission, commissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}
	if commission.Status != models.CommissionStatusPending {
		return services.ErrInvalidState
	}

	commission.Status = models.CommissionStatusApproved
	if err := h.db.Save(&commission).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commission)
}

// MarkCommissionPaid records a payout of an approved commission
func (h *ReferralHandler) MarkCommissionPaid(c echo.Context) error {
	commissionID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var commission models.Commission
	err = h.db.WithContext(c.Request().Context()).First(&commission, commissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}
	if commission.Status != models.CommissionStatusApproved {
		return services.ErrInvalidState
	}

	now := time.Now()
	commission.Status = models.CommissionStatusPaid
	commission.PaidAt = &now
	if err := h.db.Save(&commission).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commission)
}

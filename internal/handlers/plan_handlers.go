package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

type PlanHandler struct {
	db            *gorm.DB
	plans         *services.PlanService
	reconciler    *services.Reconciler
	gateway       services.Gateway
	confirmations *services.ConfirmationDispatcher
}

func NewPlanHandler(db *gorm.DB, plans *services.PlanService, reconciler *services.Reconciler, gateway services.Gateway, confirmations *services.ConfirmationDispatcher) *PlanHandler {
	return &PlanHandler{
		db:            db,
		plans:         plans,
		reconciler:    reconciler,
		gateway:       gateway,
		confirmations: confirmations,
	}
}

// ListPlans returns the authenticated user's savings plans
func (h *PlanHandler) ListPlans(c echo.Context) error {
	var plans []models.SavingsPlan
	err := h.db.WithContext(c.Request().Context()).
		Where("user_id = ?", currentUserID(c)).
		Preload("FoodPack").
		Order("created_at desc").
		Find(&plans).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plans)
}

// GetPlan returns one plan with its installment schedule
func (h *PlanHandler) GetPlan(c echo.Context) error {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var plan models.SavingsPlan
	err = h.db.WithContext(c.Request().Context()).
		Preload("FoodPack").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("due_date asc")
		}).
		First(&plan, planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}
	if plan.UserID != currentUserID(c) && !isAdmin(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your plan")
	}
	return c.JSON(http.StatusOK, plan)
}

// CreatePlan opens a plan for the authenticated user. When a first
// payment reference is supplied it is verified against the gateway
// before the schedule is written.
func (h *PlanHandler) CreatePlan(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no user in context")
	}

	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	startDate := time.Now()
	if req.StartDate != nil && *req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}
		startDate = parsed
	}

	var pack models.FoodPack
	err := h.db.WithContext(c.Request().Context()).First(&pack, req.FoodPackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusBadRequest, "food pack not found")
	}
	if err != nil {
		return err
	}

	input := services.CreatePlanInput{
		UserID:           user.ID,
		FoodPackID:       pack.ID,
		TotalAmount:      pack.Price,
		Duration:         req.Duration,
		Frequency:        models.PaymentFrequency(req.Frequency),
		Preference:       models.PaymentPreference(req.Preference),
		PaymentMethodID:  req.PaymentMethodID,
		RemindersEnabled: req.RemindersEnabled == nil || *req.RemindersEnabled,
		StartDate:        startDate,
	}

	if req.FirstPaymentReference != "" {
		tx, err := h.gateway.VerifyTransaction(c.Request().Context(), req.FirstPaymentReference)
		if err != nil {
			return err
		}
		if tx.Status != "success" {
			return echo.NewHTTPError(http.StatusBadRequest, "first payment not successful")
		}
		input.FirstPaymentReference = req.FirstPaymentReference

		// A verified card charge on an automatic plan doubles as the
		// charge instrument for future debits
		if input.Preference == models.PaymentPreferenceAutomatic && input.PaymentMethodID == nil && tx.AuthorizationCode != "" {
			method, err := h.findOrCreateMethod(user.ID, tx)
			if err != nil {
				log.Printf("Failed to store payment method for user %d: %v", user.ID, err)
			} else {
				input.PaymentMethodID = &method.ID
			}
		}
	}

	plan, err := h.plans.CreatePlan(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, plan)
}

func (h *PlanHandler) findOrCreateMethod(userID uint, tx *services.GatewayTransaction) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := h.db.Where("user_id = ? AND authorization_code = ?", userID, tx.AuthorizationCode).
		First(&method).Error
	if err == nil {
		return &method, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	method = models.PaymentMethod{
		UserID:            userID,
		AuthorizationCode: tx.AuthorizationCode,
		Last4:             tx.Last4,
		Bank:              tx.Bank,
		CardType:          tx.CardType,
	}
	if err := h.db.Create(&method).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

// CancelPlan cancels an active plan owned by the caller
func (h *PlanHandler) CancelPlan(c echo.Context) error {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var plan models.SavingsPlan
	err = h.db.WithContext(c.Request().Context()).First(&plan, planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}
	if plan.UserID != currentUserID(c) && !isAdmin(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your plan")
	}

	cancelled, err := h.plans.CancelPlan(c.Request().Context(), planID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cancelled)
}

// RecordPayment applies a customer-reported payment after verifying
// the reference against the gateway
func (h *PlanHandler) RecordPayment(c echo.Context) error {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var plan models.SavingsPlan
	err = h.db.WithContext(c.Request().Context()).First(&plan, planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if err != nil {
		return err
	}
	if plan.UserID != currentUserID(c) && !isAdmin(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your plan")
	}

	var req ManualPaymentRequest
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	tx, err := h.gateway.VerifyTransaction(c.Request().Context(), req.Reference)
	if err != nil {
		return err
	}
	if tx.Status != "success" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction not successful")
	}

	applied, err := h.reconciler.ApplyPayment(c.Request().Context(), planID, tx.Amount, req.Reference)
	if errors.Is(err, services.ErrDuplicateEvent) {
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}
	if err != nil {
		return err
	}

	h.enqueueConfirmation(applied)
	return c.JSON(http.StatusOK, applied)
}

// AdminRecordPayment records a payment that never touched the gateway,
// for example a bank transfer reconciled by hand
func (h *PlanHandler) AdminRecordPayment(c echo.Context) error {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req AdminPaymentRequest
	if err := c.Bind(&req); err != nil || req.Reference == "" || req.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "reference and positive amount are required")
	}

	applied, err := h.reconciler.ApplyPayment(c.Request().Context(), planID, req.Amount, req.Reference)
	if errors.Is(err, services.ErrDuplicateEvent) {
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}
	if err != nil {
		return err
	}

	h.enqueueConfirmation(applied)
	return c.JSON(http.StatusOK, applied)
}

// AdminRevertPayment undoes a mistakenly applied installment
func (h *PlanHandler) AdminRevertPayment(c echo.Context) error {
	planID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	installmentID, err := parseUintParam(c, "installmentId")
	if err != nil {
		return err
	}

	plan, err := h.reconciler.RevertPayment(c.Request().Context(), planID, installmentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *PlanHandler) enqueueConfirmation(applied *services.AppliedPayment) {
	if h.confirmations == nil {
		return
	}
	var user models.User
	if err := h.db.First(&user, applied.Plan.UserID).Error; err != nil {
		log.Printf("Failed to load user %d for confirmation: %v", applied.Plan.UserID, err)
		return
	}
	var pack models.FoodPack
	if err := h.db.First(&pack, applied.Plan.FoodPackID).Error; err != nil {
		log.Printf("Failed to load food pack %d for confirmation: %v", applied.Plan.FoodPackID, err)
	}
	h.confirmations.Enqueue(services.ConfirmationMessage{
		To:          user.Email,
		Name:        user.Name,
		FoodPack:    pack.Name,
		Amount:      applied.Installment.Amount,
		AmountPaid:  applied.Plan.AmountPaid,
		TotalAmount: applied.Plan.TotalAmount,
		Completed:   applied.Plan.Status == models.PlanStatusCompleted,
	})
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return uint(value), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
)

// PlanService owns the savings plan lifecycle: creation with full
// schedule generation, cancellation, and the same-day payment lookup the
// webhook dispatcher uses as its duplicate heuristic.
type PlanService struct {
	db            *gorm.DB
	confirmations *ConfirmationDispatcher
	notifier      Notifier
}

func NewPlanService(db *gorm.DB, confirmations *ConfirmationDispatcher, notifier Notifier) *PlanService {
	return &PlanService{db: db, confirmations: confirmations, notifier: notifier}
}

// CreatePlanInput carries everything needed to open a plan. When
// FirstPaymentReference is set the first installment is created already
// settled and the commission accrual path runs.
type CreatePlanInput struct {
	UserID                uint
	FoodPackID            uint
	TotalAmount           float64
	Duration              int
	StartDate             time.Time
	Frequency             models.PaymentFrequency
	Preference            models.PaymentPreference
	PaymentMethodID       *uint
	SubscriptionCode      *string
	RemindersEnabled      bool
	FirstPaymentReference string
}

// CreatePlan generates the full installment schedule and persists the
// plan, its installments, the optional first-payment marking, and the
// referral commission in one transaction. Schedule generation runs
// before the transaction so invalid terms never touch the store.
func (s *PlanService) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.SavingsPlan, error) {
	installments, err := BuildInstallments(PlanTerms{
		TotalAmount:           input.TotalAmount,
		Duration:              input.Duration,
		StartDate:             input.StartDate,
		Frequency:             input.Frequency,
		FirstPaymentReference: input.FirstPaymentReference,
	})
	if err != nil {
		return nil, err
	}

	monthly := decimal.NewFromFloat(input.TotalAmount).
		Div(decimal.NewFromInt(int64(input.Duration))).
		Round(2)

	plan := models.SavingsPlan{
		Reference:         uuid.NewString(),
		UserID:            input.UserID,
		FoodPackID:        input.FoodPackID,
		TotalAmount:       input.TotalAmount,
		MonthlyAmount:     monthly.InexactFloat64(),
		Duration:          input.Duration,
		StartDate:         input.StartDate,
		Status:            models.PlanStatusActive,
		PaymentPreference: input.Preference,
		PaymentFrequency:  input.Frequency,
		PaymentMethodID:   input.PaymentMethodID,
		SubscriptionCode:  input.SubscriptionCode,
		RemindersEnabled:  input.RemindersEnabled,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}

		for i := range installments {
			installments[i].PlanID = plan.ID
		}
		if err := tx.Create(&installments).Error; err != nil {
			return err
		}

		if input.FirstPaymentReference != "" {
			firstAmount := installments[0].Amount
			plan.AmountPaid = firstAmount
			plan.LastPaymentDate = installments[0].PaidAt
			if plan.IsCompleted() {
				plan.Status = models.PlanStatusCompleted
			}
			if err := tx.Save(&plan).Error; err != nil {
				return err
			}

			if err := AccrueFirstPaymentCommission(tx, input.UserID, plan.ID, firstAmount); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	plan.Installments = installments

	if s.confirmations != nil || s.notifier != nil {
		var user models.User
		var pack models.FoodPack
		if err := s.db.First(&user, plan.UserID).Error; err == nil {
			_ = s.db.First(&pack, plan.FoodPackID).Error

			if input.FirstPaymentReference != "" && s.confirmations != nil {
				s.confirmations.Enqueue(ConfirmationMessage{
					To:          user.Email,
					Name:        user.Name,
					FoodPack:    pack.Name,
					Amount:      installments[0].Amount,
					AmountPaid:  plan.AmountPaid,
					TotalAmount: plan.TotalAmount,
					Completed:   plan.Status == models.PlanStatusCompleted,
				})
			}
			if s.notifier != nil {
				go s.sendPlanCreated(user, pack, plan, len(installments), installments[0].Amount)
			}
		}
	}

	return &plan, nil
}

func (s *PlanService) sendPlanCreated(user models.User, pack models.FoodPack, plan models.SavingsPlan, count int, amount float64) {
	model := map[string]interface{}{
		"Name":              user.Name,
		"FoodPack":          pack.Name,
		"InstallmentCount":  count,
		"InstallmentAmount": fmt.Sprintf("%.2f", amount),
		"StartDate":         plan.StartDate.Format("2 January 2006"),
	}
	if err := s.notifier.SendTemplatedEmail(user.Email, "Your savings plan is ready", "plan_created", model); err != nil {
		log.Printf("Failed to send plan created email to %s: %v", user.Email, err)
	}
}

// CancelPlan marks an active plan cancelled. Completed plans cannot be
// cancelled.
func (s *PlanService) CancelPlan(ctx context.Context, planID uint) (*models.SavingsPlan, error) {
	var plan models.SavingsPlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: plan %d", ErrNotFound, planID)
			}
			return err
		}
		if plan.Status != models.PlanStatusActive {
			return fmt.Errorf("%w: plan %d is %s", ErrInvalidState, planID, plan.Status)
		}
		plan.Status = models.PlanStatusCancelled
		return tx.Save(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// UserPaidToday reports whether any of the user's plans recorded a
// payment on the given calendar day. The webhook dispatcher uses this as
// its duplicate-delivery heuristic for new-plan events.
func (s *PlanService) UserPaidToday(ctx context.Context, userID uint, now time.Time) (bool, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.SavingsPlan{}).
		Where("user_id = ? AND last_payment_date >= ? AND last_payment_date < ?", userID, dayStart, dayEnd).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

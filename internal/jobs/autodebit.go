package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/metrics"
	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

// AutoDebit charges due installments of automatic plans against a
// stored payment instrument. A failed charge leaves the installment
// pending for the next cycle; one installment's failure never aborts
// the rest of the batch.
type AutoDebit struct {
	db            *gorm.DB
	gateway       services.Gateway
	reconciler    *services.Reconciler
	confirmations *services.ConfirmationDispatcher
}

func NewAutoDebit(db *gorm.DB, gateway services.Gateway, reconciler *services.Reconciler, confirmations *services.ConfirmationDispatcher) *AutoDebit {
	return &AutoDebit{
		db:            db,
		gateway:       gateway,
		reconciler:    reconciler,
		confirmations: confirmations,
	}
}

func (j *AutoDebit) Name() string { return "auto_debit" }

func (j *AutoDebit) Run(ctx context.Context) error {
	var due []models.Installment
	err := j.db.WithContext(ctx).
		Where("status = ? AND due_date <= ?", models.InstallmentStatusPending, time.Now()).
		Order("due_date asc").
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("failed to fetch due installments: %w", err)
	}

	if len(due) == 0 {
		return nil
	}
	log.Printf("[%s] found %d due installments", j.Name(), len(due))

	for _, installment := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := j.chargeInstallment(ctx, installment); err != nil {
			log.Printf("[%s] installment %d (plan %d): %v", j.Name(), installment.ID, installment.PlanID, err)
			metrics.AutoDebitCharges.WithLabelValues("failure").Inc()
		}
	}

	return nil
}

func (j *AutoDebit) chargeInstallment(ctx context.Context, installment models.Installment) error {
	// Re-read before charging: a webhook or manual payment may have
	// settled this installment after the batch was queried. Charging
	// from the stale row would debit the customer ahead of schedule.
	var current models.Installment
	if err := j.db.WithContext(ctx).First(&current, installment.ID).Error; err != nil {
		return fmt.Errorf("failed to reload installment: %w", err)
	}
	if current.Status != models.InstallmentStatusPending || current.DueDate.After(time.Now()) {
		return nil
	}
	installment = current

	var plan models.SavingsPlan
	if err := j.db.WithContext(ctx).Preload("User").First(&plan, installment.PlanID).Error; err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	if plan.Status != models.PlanStatusActive || plan.PaymentPreference != models.PaymentPreferenceAutomatic {
		return nil
	}

	method, err := j.resolveInstrument(ctx, plan)
	if err != nil {
		return err
	}
	if method == nil {
		log.Printf("[%s] no stored instrument for user %d, skipping installment %d", j.Name(), plan.UserID, installment.ID)
		metrics.AutoDebitCharges.WithLabelValues("skipped").Inc()
		return nil
	}

	reference := "autodebit-" + uuid.NewString()
	charge, err := j.gateway.ChargeAuthorization(ctx, plan.User.Email, method.AuthorizationCode, installment.Amount, reference)
	if err != nil {
		return fmt.Errorf("charge failed: %w", err)
	}
	if charge.Status != "success" {
		return fmt.Errorf("charge returned status %q", charge.Status)
	}

	applied, err := j.reconciler.ApplyPayment(ctx, plan.ID, installment.Amount, charge.Reference)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEvent) {
			// The webhook for this charge beat us to it
			metrics.AutoDebitCharges.WithLabelValues("duplicate").Inc()
			return nil
		}
		return fmt.Errorf("reconciliation failed after successful charge %s: %w", charge.Reference, err)
	}

	metrics.AutoDebitCharges.WithLabelValues("success").Inc()

	if j.confirmations != nil {
		var pack models.FoodPack
		_ = j.db.First(&pack, plan.FoodPackID).Error
		j.confirmations.Enqueue(services.ConfirmationMessage{
			To:          plan.User.Email,
			Name:        plan.User.Name,
			FoodPack:    pack.Name,
			Amount:      installment.Amount,
			AmountPaid:  applied.Plan.AmountPaid,
			TotalAmount: applied.Plan.TotalAmount,
			Completed:   applied.Plan.Status == models.PlanStatusCompleted,
		})
	}

	return nil
}

// resolveInstrument picks the charge instrument for a plan: the plan's
// bound method, else the user's default, else the user's first method.
// A nil result with nil error means the user has nothing stored.
func (j *AutoDebit) resolveInstrument(ctx context.Context, plan models.SavingsPlan) (*models.PaymentMethod, error) {
	var method models.PaymentMethod

	if plan.PaymentMethodID != nil {
		err := j.db.WithContext(ctx).First(&method, *plan.PaymentMethodID).Error
		if err == nil {
			return &method, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// Bound method was removed; fall through to the user's methods
	}

	err := j.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", plan.UserID, true).
		First(&method).Error
	if err == nil {
		return &method, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = j.db.WithContext(ctx).
		Where("user_id = ?", plan.UserID).
		Order("id asc").
		First(&method).Error
	if err == nil {
		return &method, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return nil, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodstash_app_echo/internal/metrics"
	"foodstash_app_echo/internal/models"
)

// lockPlan takes the plan row for update so concurrent reconciliations
// of the same plan serialize on it. Without the lock, two transactions
// carrying distinct references can both select the same earliest pending
// installment under READ COMMITTED and the second overwrites the first.
// sqlite has no row locks and already serializes writers, so the clause
// is skipped there.
func lockPlan(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Reconciler applies confirmed payments to a plan's installment schedule
// and keeps the plan's aggregates and lifecycle status consistent. Every
// operation runs in a single database transaction.
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// AppliedPayment is the outcome of a successful reconciliation, returned
// for downstream signalling (confirmation email, commission checks).
type AppliedPayment struct {
	Plan        models.SavingsPlan
	Installment models.Installment
}

// ApplyPayment records a confirmed payment amount against the earliest
// pending installment of the plan (FIFO by due date), increments the
// plan's paid aggregate, and marks the plan completed when the aggregate
// covers the total. Re-applying a reference that already settled an
// installment returns ErrDuplicateEvent and changes nothing.
//
// The incoming amount is expected to equal the installment's amount but
// a mismatch is not a failure: whatever arrives is recorded against the
// next due slot, with a logged warning.
func (r *Reconciler) ApplyPayment(ctx context.Context, planID uint, amount float64, reference string) (*AppliedPayment, error) {
	var result AppliedPayment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.SavingsPlan
		if err := lockPlan(tx).First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: plan %d", ErrNotFound, planID)
			}
			return err
		}

		// Idempotency guard: this reference already settled an installment
		var settled int64
		if err := tx.Model(&models.Installment{}).
			Where("plan_id = ? AND payment_reference = ? AND status = ?", planID, reference, models.InstallmentStatusPaid).
			Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			return ErrDuplicateEvent
		}

		var installment models.Installment
		if err := tx.Where("plan_id = ? AND status = ?", planID, models.InstallmentStatusPending).
			Order("due_date asc").
			First(&installment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: plan %d has no pending installments", ErrInvalidState, planID)
			}
			return err
		}

		if installment.Amount != amount {
			log.Printf("Payment %s for plan %d: amount %.2f does not match installment %d amount %.2f, applying anyway",
				reference, planID, amount, installment.ID, installment.Amount)
		}

		now := time.Now()
		installment.Status = models.InstallmentStatusPaid
		installment.PaymentReference = &reference
		installment.PaidAt = &now
		if err := tx.Save(&installment).Error; err != nil {
			return err
		}

		plan.AmountPaid = decimal.NewFromFloat(plan.AmountPaid).
			Add(decimal.NewFromFloat(amount)).
			InexactFloat64()
		plan.LastPaymentDate = &now
		if plan.IsCompleted() {
			plan.Status = models.PlanStatusCompleted
		}
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}

		result = AppliedPayment{Plan: plan, Installment: installment}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			metrics.DuplicatePayments.Inc()
		}
		return nil, err
	}

	metrics.PaymentsApplied.Inc()
	return &result, nil
}

// RevertPayment undoes a paid installment: admin-only correction path.
// The installment returns to pending with its reference and paid-at
// cleared, the plan's paid aggregate is decremented, and a completed
// plan is demoted back to active.
func (r *Reconciler) RevertPayment(ctx context.Context, planID, installmentID uint) (*AppliedPayment, error) {
	var result AppliedPayment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.SavingsPlan
		if err := lockPlan(tx).First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: plan %d", ErrNotFound, planID)
			}
			return err
		}

		var installment models.Installment
		if err := tx.Where("id = ? AND plan_id = ?", installmentID, planID).First(&installment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: installment %d on plan %d", ErrNotFound, installmentID, planID)
			}
			return err
		}

		if installment.Status != models.InstallmentStatusPaid {
			return fmt.Errorf("%w: installment %d is not paid", ErrInvalidState, installmentID)
		}

		if err := tx.Model(&installment).Updates(map[string]interface{}{
			"status":            models.InstallmentStatusPending,
			"payment_reference": nil,
			"paid_at":           nil,
		}).Error; err != nil {
			return err
		}
		installment.Status = models.InstallmentStatusPending
		installment.PaymentReference = nil
		installment.PaidAt = nil

		plan.AmountPaid = decimal.NewFromFloat(plan.AmountPaid).
			Sub(decimal.NewFromFloat(installment.Amount)).
			InexactFloat64()
		if plan.Status == models.PlanStatusCompleted && !plan.IsCompleted() {
			plan.Status = models.PlanStatusActive
		}
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}

		result = AppliedPayment{Plan: plan, Installment: installment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsReverted.Inc()
	return &result, nil
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

// reminderWindow is how far ahead of the due date customers are notified
const reminderWindow = 3 * 24 * time.Hour

// Reminders notifies customers of upcoming installments. One reminder
// per plan per cycle, for the earliest pending installment due within
// the window. A failure for one plan never blocks the others.
type Reminders struct {
	db       *gorm.DB
	notifier services.Notifier
}

func NewReminders(db *gorm.DB, notifier services.Notifier) *Reminders {
	return &Reminders{db: db, notifier: notifier}
}

func (j *Reminders) Name() string { return "installment_reminders" }

func (j *Reminders) Run(ctx context.Context) error {
	var plans []models.SavingsPlan
	err := j.db.WithContext(ctx).
		Preload("User").
		Preload("FoodPack").
		Where("status = ? AND reminders_enabled = ?", models.PlanStatusActive, true).
		Find(&plans).Error
	if err != nil {
		return fmt.Errorf("failed to fetch active plans: %w", err)
	}

	cutoff := time.Now().Add(reminderWindow)

	for _, plan := range plans {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := j.remindPlan(ctx, plan, cutoff); err != nil {
			log.Printf("[%s] plan %d: %v", j.Name(), plan.ID, err)
		}
	}

	return nil
}

func (j *Reminders) remindPlan(ctx context.Context, plan models.SavingsPlan, cutoff time.Time) error {
	var installment models.Installment
	err := j.db.WithContext(ctx).
		Where("plan_id = ? AND status = ? AND due_date <= ?", plan.ID, models.InstallmentStatusPending, cutoff).
		Order("due_date asc").
		First(&installment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // nothing due soon
		}
		return err
	}

	model := map[string]interface{}{
		"Name":     plan.User.Name,
		"FoodPack": plan.FoodPack.Name,
		"Amount":   fmt.Sprintf("%.2f", installment.Amount),
		"DueDate":  installment.DueDate.Format("2 January 2006"),
	}

	if err := j.notifier.SendTemplatedEmail(plan.User.Email, "Installment due soon", "installment_reminder", model); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	return nil
}

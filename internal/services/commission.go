package services

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
)

// AccrueFirstPaymentCommission runs inside the plan-creation transaction.
// If the paying user was referred by an active marketer and the referral
// has not converted yet, the referral becomes active and one pending
// commission is created at the marketer's current rate. The rate is
// stored with the commission and never re-derived.
//
// This fires once per referral conversion, at plan creation, not on
// later installments of the same plan.
func AccrueFirstPaymentCommission(tx *gorm.DB, userID, planID uint, firstPaymentAmount float64) error {
	var referral models.Referral
	err := tx.Preload("Marketer").
		Where("user_id = ? AND status = ?", userID, models.ReferralStatusPending).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // user was not referred, or already converted
		}
		return err
	}

	if !referral.Marketer.IsActive {
		log.Printf("Skipping commission for referral %d: marketer %d is inactive", referral.ID, referral.MarketerID)
		return nil
	}

	referral.Status = models.ReferralStatusActive
	if err := tx.Save(&referral).Error; err != nil {
		return err
	}

	amount := decimal.NewFromFloat(firstPaymentAmount).
		Mul(decimal.NewFromFloat(referral.Marketer.CommissionRate)).
		Round(2)

	commission := models.Commission{
		MarketerID:    referral.MarketerID,
		ReferralID:    referral.ID,
		PlanID:        planID,
		Amount:        amount.InexactFloat64(),
		RateAtAccrual: referral.Marketer.CommissionRate,
		Status:        models.CommissionStatusPending,
	}
	if err := tx.Create(&commission).Error; err != nil {
		return err
	}

	log.Printf("Accrued commission %.2f for marketer %d on referral %d", commission.Amount, referral.MarketerID, referral.ID)
	return nil
}

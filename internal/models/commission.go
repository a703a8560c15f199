package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionStatus represents the payout state of a commission
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusApproved  CommissionStatus = "approved"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Commission is the amount owed to a marketer for one referral's
// conversion. The rate is snapshotted at accrual time so later rate
// changes never alter historical commissions.
type Commission struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MarketerID uint `gorm:"index" json:"marketer_id"`
	ReferralID uint `gorm:"index" json:"referral_id"`
	PlanID     uint `gorm:"index" json:"plan_id"`

	Amount        float64          `gorm:"type:decimal(15,2)" json:"amount"`
	RateAtAccrual float64          `gorm:"type:decimal(6,4)" json:"rate_at_accrual"`
	Status        CommissionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaidAt        *time.Time       `json:"paid_at"`

	// Relationships
	Marketer Marketer    `gorm:"foreignKey:MarketerID" json:"marketer,omitempty"`
	Referral Referral    `gorm:"foreignKey:ReferralID" json:"referral,omitempty"`
	Plan     SavingsPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

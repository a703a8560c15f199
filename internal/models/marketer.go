package models

import (
	"time"

	"gorm.io/gorm"
)

// Marketer represents a referral agent who earns commissions on conversions
type Marketer struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name         string `gorm:"type:varchar(255)" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	ReferralCode string `gorm:"type:varchar(50);uniqueIndex" json:"referral_code"`

	// CommissionRate is a fraction of the qualifying payment, e.g. 0.05 for 5%
	CommissionRate float64 `gorm:"type:decimal(6,4)" json:"commission_rate"`
	IsActive       bool    `gorm:"default:true" json:"is_active"`

	// Relationships
	Referrals   []Referral   `gorm:"foreignKey:MarketerID" json:"referrals,omitempty"`
	Commissions []Commission `gorm:"foreignKey:MarketerID" json:"commissions,omitempty"`
}

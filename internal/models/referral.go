package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralStatus represents the lifecycle of a marketer referral
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActive    ReferralStatus = "active"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusExpired   ReferralStatus = "expired"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

// Referral links a marketer to a user they referred. It becomes active
// on the referred user's first plan payment.
type Referral struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MarketerID uint           `gorm:"index" json:"marketer_id"`
	UserID     uint           `gorm:"index" json:"user_id"`
	Status     ReferralStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// Relationships
	Marketer Marketer `gorm:"foreignKey:MarketerID" json:"marketer,omitempty"`
	User     User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

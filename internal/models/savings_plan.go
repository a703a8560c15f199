package models

import (
	"time"

	"gorm.io/gorm"
)

// PlanStatus represents the lifecycle status of a savings plan
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// PaymentPreference controls whether installments are charged automatically
type PaymentPreference string

const (
	PaymentPreferenceManual    PaymentPreference = "manual"
	PaymentPreferenceAutomatic PaymentPreference = "automatic"
)

// PaymentFrequency is the cadence of the installment schedule
type PaymentFrequency string

const (
	PaymentFrequencyDaily   PaymentFrequency = "daily"
	PaymentFrequencyWeekly  PaymentFrequency = "weekly"
	PaymentFrequencyMonthly PaymentFrequency = "monthly"
)

// SavingsPlan represents one customer's commitment to one food package
type SavingsPlan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Reference  string `gorm:"type:varchar(64);uniqueIndex" json:"reference"`
	UserID     uint   `gorm:"index" json:"user_id"`
	FoodPackID uint   `gorm:"index" json:"food_pack_id"`

	TotalAmount   float64 `gorm:"type:decimal(15,2)" json:"total_amount"`
	MonthlyAmount float64 `gorm:"type:decimal(15,2)" json:"monthly_amount"`
	AmountPaid    float64 `gorm:"type:decimal(15,2)" json:"amount_paid"`

	// Duration is the number of months the plan runs for
	Duration        int        `json:"duration"`
	StartDate       time.Time  `json:"start_date"`
	LastPaymentDate *time.Time `json:"last_payment_date"`

	Status            PlanStatus        `gorm:"type:varchar(20);default:'active';index" json:"status"`
	PaymentPreference PaymentPreference `gorm:"type:varchar(20);default:'manual'" json:"payment_preference"`
	PaymentFrequency  PaymentFrequency  `gorm:"type:varchar(20);default:'monthly'" json:"payment_frequency"`

	// PaymentMethodID binds a stored charge instrument for automatic debits
	PaymentMethodID *uint `json:"payment_method_id"`

	// SubscriptionCode is the gateway-side recurring billing handle, if any
	SubscriptionCode *string `gorm:"type:varchar(100)" json:"subscription_code"`

	RemindersEnabled bool `gorm:"default:true" json:"reminders_enabled"`

	// Relationships
	User         User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	FoodPack     FoodPack      `gorm:"foreignKey:FoodPackID" json:"food_pack,omitempty"`
	Installments []Installment `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
}

// IsCompleted reports whether the paid aggregate covers the plan total
func (p SavingsPlan) IsCompleted() bool {
	return p.AmountPaid >= p.TotalAmount
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// InstallmentStatus represents the payment state of a single installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

// Installment represents one scheduled due payment within a savings plan
type Installment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PlanID  uint              `gorm:"index" json:"plan_id"`
	DueDate time.Time         `gorm:"index" json:"due_date"`
	Amount  float64           `gorm:"type:decimal(15,2)" json:"amount"`
	Status  InstallmentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// PaymentReference is the gateway reference that settled this
	// installment. Unique so a replayed event can never settle twice.
	PaymentReference *string    `gorm:"type:varchar(100);uniqueIndex" json:"payment_reference"`
	PaidAt           *time.Time `json:"paid_at"`

	// Relationships
	Plan SavingsPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType represents the type of user
type UserType string

const (
	UserTypeAdmin    UserType = "Admin"
	UserTypeCustomer UserType = "Customer"
)

// User represents a customer of the platform
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Phone       string   `gorm:"type:varchar(50)" json:"phone"`
	Email       string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	FirebaseUID string   `gorm:"type:varchar(128);index" json:"firebase_uid"`
	UserType    UserType `gorm:"type:varchar(20);default:'Customer'" json:"user_type"`

	// ReferralCodeUsed is the marketer code the user signed up with, if any
	ReferralCodeUsed string `gorm:"type:varchar(50)" json:"referral_code_used"`

	// Relationships
	Plans          []SavingsPlan   `gorm:"foreignKey:UserID" json:"plans,omitempty"`
	PaymentMethods []PaymentMethod `gorm:"foreignKey:UserID" json:"payment_methods,omitempty"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod is a stored, reusable charge instrument belonging to a
// user. At most one method per user is the default at a time.
type PaymentMethod struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"index" json:"user_id"`

	// AuthorizationCode is the gateway-side token for charging this
	// instrument without user interaction
	AuthorizationCode string `gorm:"type:varchar(100)" json:"authorization_code"`
	CardType          string `gorm:"type:varchar(50)" json:"card_type"`
	Last4             string `gorm:"type:varchar(4)" json:"last4"`
	Bank              string `gorm:"type:varchar(100)" json:"bank"`
	IsDefault         bool   `gorm:"default:false" json:"is_default"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// FoodPack represents a food package customers save toward
type FoodPack struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string  `gorm:"type:varchar(255)" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"type:decimal(15,2)" json:"price"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`
}

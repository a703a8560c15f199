package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayPaystack PaymentGateway = "paystack"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// GatewayEventOutcome records what the dispatcher did with a delivery
type GatewayEventOutcome string

const (
	GatewayEventApplied   GatewayEventOutcome = "applied"
	GatewayEventDuplicate GatewayEventOutcome = "duplicate"
	GatewayEventIgnored   GatewayEventOutcome = "ignored"
	GatewayEventFailed    GatewayEventOutcome = "failed"
)

// GatewayEvent is the audit log of every webhook delivery received from
// the payment gateway, including duplicates and ignored event types.
type GatewayEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Gateway   PaymentGateway      `gorm:"type:varchar(50);not null" json:"gateway"`
	EventType string              `gorm:"type:varchar(100)" json:"event_type"`
	Reference string              `gorm:"type:varchar(100);index" json:"reference"`
	Outcome   GatewayEventOutcome `gorm:"type:varchar(20)" json:"outcome"`
	Payload   json.RawMessage     `gorm:"type:jsonb" json:"payload"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Refund tracks a gateway refund issued against an order's payment.
type Refund struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	GatewayRefundID *string    `gorm:"column:gateway_refund_id"`
	AmountCents     int64      `gorm:"column:amount_cents;not null"`
	Reason          *string    `gorm:"column:reason"`
	SettledAt       *time.Time `gorm:"column:settled_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// PaymentLedgerEntry records an immutable money lifecycle event tied to an order.
// Reconciliation reads this log to audit gateway state against local state.
type PaymentLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	CustomerID  uuid.UUID             `gorm:"column:customer_id;type:uuid;not null"`
	Type        enums.OutboxEventType `gorm:"column:type;type:text;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	PaymentRef  *string               `gorm:"column:payment_ref"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

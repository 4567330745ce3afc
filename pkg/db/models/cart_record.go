package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/types"
)

// CartRecord captures a customer-scoped cart that converts into an order at checkout.
type CartRecord struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	Status          enums.CartStatus       `gorm:"column:status;type:cart_status;not null;default:'active'"`
	DeliveryMode    enums.DeliveryMode     `gorm:"column:delivery_mode;type:delivery_mode;not null;default:'delivery'"`
	DeliveryAddress *types.DeliveryAddress `gorm:"column:delivery_address;type:delivery_address_t"`
	PromoCodes      pq.StringArray         `gorm:"column:promo_codes;type:text[]"`
	Currency        enums.Currency         `gorm:"column:currency;not null;default:'USD'"`
	ExpiresAt       time.Time              `gorm:"column:expires_at;not null"`
	SubtotalCents   int64                  `gorm:"column:subtotal_cents;not null;default:0"`
	ConvertedAt     *time.Time             `gorm:"column:converted_at"`
	Items           []CartItem             `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem persists a meal-level snapshot tied to a CartRecord.
type CartItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	MealID            uuid.UUID `gorm:"column:meal_id;type:uuid;not null"`
	ChefID            uuid.UUID `gorm:"column:chef_id;type:uuid;not null"`
	Name              string    `gorm:"column:name;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int64     `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

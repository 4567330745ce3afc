package models

import (
	"time"

	"github.com/google/uuid"
)

// MealAvailability tracks the sellable quantity for a chef's meal. RemainingQty
// never exceeds TotalQty; releases are capped against it.
type MealAvailability struct {
	MealID         uuid.UUID `gorm:"column:meal_id;type:uuid;primaryKey"`
	ChefID         uuid.UUID `gorm:"column:chef_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalQty       int       `gorm:"column:total_qty;not null;default:0"`
	RemainingQty   int       `gorm:"column:remaining_qty;not null;default:0"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/types"
)

// Order represents the order produced from a converted cart.
type Order struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID             uuid.UUID              `gorm:"column:cart_id;type:uuid;not null"`
	CustomerID         uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	ChefID             uuid.UUID              `gorm:"column:chef_id;type:uuid;not null"`
	OrderNumber        int64                  `gorm:"column:order_number;not null;default:nextval('order_number_seq')"`
	Status             enums.OrderStatus      `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus    `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	DeliveryMode       enums.DeliveryMode     `gorm:"column:delivery_mode;type:delivery_mode;not null"`
	DeliveryAddress    *types.DeliveryAddress `gorm:"column:delivery_address;type:delivery_address_t"`
	Currency           enums.Currency         `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents      int64                  `gorm:"column:subtotal_cents;not null"`
	TaxCents           int64                  `gorm:"column:tax_cents;not null;default:0"`
	DeliveryFeeCents   int64                  `gorm:"column:delivery_fee_cents;not null;default:0"`
	ServiceFeeCents    int64                  `gorm:"column:service_fee_cents;not null;default:0"`
	DiscountCents      int64                  `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int64                  `gorm:"column:total_cents;not null"`
	RefundedCents      int64                  `gorm:"column:refunded_cents;not null;default:0"`
	PaymentRef         *string                `gorm:"column:payment_ref"`
	PaymentCorrelation *string                `gorm:"column:payment_correlation"`
	FailureReason      *string                `gorm:"column:failure_reason"`
	CancellationReason *string                `gorm:"column:cancellation_reason"`
	FulfillmentNotes   *string                `gorm:"column:fulfillment_notes"`
	ConfirmedAt        *time.Time             `gorm:"column:confirmed_at"`
	PreparingAt        *time.Time             `gorm:"column:preparing_at"`
	ReadyAt            *time.Time             `gorm:"column:ready_at"`
	OutForDeliveryAt   *time.Time             `gorm:"column:out_for_delivery_at"`
	DeliveredAt        *time.Time             `gorm:"column:delivered_at"`
	CancelledAt        *time.Time             `gorm:"column:cancelled_at"`
	Items              []OrderLineItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CartID      uuid.UUID `json:"cart_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	OrderNumber int64     `json:"order_number"`
	TotalCents  int64     `json:"total_cents"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted whenever a customer cancels a pre-preparing order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// PaymentSucceededEvent confirms the gateway captured the order total.
type PaymentSucceededEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	PaymentRef  string    `json:"payment_ref"`
	AmountCents int64     `json:"amount_cents"`
}

// PaymentFailedEvent reports a terminal payment failure.
type PaymentFailedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// PaymentRefundedEvent records a full or partial refund settling.
type PaymentRefundedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	AmountCents int64     `json:"amount_cents"`
	Partial     bool      `json:"partial"`
}

// CartExpiredEvent is emitted when the sweeper expires an idle cart.
type CartExpiredEvent struct {
	CartID     uuid.UUID `json:"cart_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

package orders

import (
	"time"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

// transitionTable holds the legal next statuses for each status. Cancellation
// is reachable from every non-terminal status; delivered and cancelled are
// terminal.
var transitionTable = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusReady:          {enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusDelivered:      {},
	enums.OrderStatusCancelled:      {},
}

// CanTransition reports whether moving from one status to another is legal.
// A self-transition is always allowed; callers treat it as a no-op.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ApplyTransition returns a copy of the order moved to the target status with
// the matching timestamp stamped. The order value itself is never mutated;
// persistence happens separately under a prior-status guard. A self-transition
// returns the order unchanged.
func ApplyTransition(order models.Order, to enums.OrderStatus, now time.Time) (models.Order, error) {
	if !to.IsValid() {
		return order, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if order.Status == to {
		return order, nil
	}
	if !CanTransition(order.Status, to) {
		return order, pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition not allowed").
			WithDetails(map[string]any{
				"from": order.Status,
				"to":   to,
			})
	}

	order.Status = to
	stamp := now
	switch to {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &stamp
	case enums.OrderStatusPreparing:
		order.PreparingAt = &stamp
	case enums.OrderStatusReady:
		order.ReadyAt = &stamp
	case enums.OrderStatusOutForDelivery:
		order.OutForDeliveryAt = &stamp
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &stamp
	case enums.OrderStatusCancelled:
		order.CancelledAt = &stamp
	}
	return order, nil
}

// statusTimestampColumn maps a target status to the column stamped on entry.
func statusTimestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusPreparing:
		return "preparing_at"
	case enums.OrderStatusReady:
		return "ready_at"
	case enums.OrderStatusOutForDelivery:
		return "out_for_delivery_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

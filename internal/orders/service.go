package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/outbox"
	"github.com/platefulhq/plateful-backend/pkg/outbox/payloads"
	"github.com/platefulhq/plateful-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryReleaser returns reserved stock when an order is cancelled.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, mealID uuid.UUID, qty int) error
}

// PaymentRefunder returns the customer's money after a paid order is
// cancelled.
type PaymentRefunder interface {
	RefundCancelled(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
}

// TransitionInput carries a chef-side lifecycle move.
type TransitionInput struct {
	OrderID uuid.UUID
	ChefID  uuid.UUID
	Target  enums.OrderStatus
	Note    *string
}

// CancelInput carries a customer-side cancellation.
type CancelInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Reason     string
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryReleaser
	refunder  PaymentRefunder
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds an order service with the required dependencies. The
// refunder may be nil when refund-on-cancel is wired elsewhere.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, releaser InventoryReleaser, refunder PaymentRefunder, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if releaser == nil {
		releaser = mealReleaser{}
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		inventory: releaser,
		refunder:  refunder,
		logger:    log,
		now:       time.Now,
	}, nil
}

// List returns the customer's orders, newest first.
func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// Get returns a single order scoped to the customer.
func (s *service) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDAndCustomer(ctx, orderID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Transition moves an order along its lifecycle on behalf of the chef who
// owns it. Legality is decided by the pure transition table; persistence is
// guarded on the observed prior status so a concurrent move loses cleanly.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ChefID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chef id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.ChefID != input.ChefID {
			return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}

		next, err := ApplyTransition(*order, input.Target, s.now())
		if err != nil {
			return err
		}
		if next.Status == order.Status {
			result = order
			return nil
		}

		moved, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, next.Status, s.now(), input.Note)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was updated concurrently")
		}

		if input.Note != nil && *input.Note != "" {
			if next.Status == enums.OrderStatusCancelled {
				next.CancellationReason = input.Note
			} else {
				next.FulfillmentNotes = input.Note
			}
		}

		if next.Status == enums.OrderStatusCancelled {
			if err := s.releaseOrderStock(ctx, tx, order); err != nil {
				return err
			}
		}

		if err := s.emitStatusChanged(ctx, tx, order, next.Status); err != nil {
			return err
		}

		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithOrderID(ctx, input.OrderID.String())
	s.logger.Info(s.logger.WithField(logCtx, "status", result.Status.String()), "order transitioned")
	return result, nil
}

// Cancel cancels the customer's order. Customers may only back out before the
// chef starts preparing; later cancellation is a chef-side transition.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var result *models.Order
	var needsRefund bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDAndCustomer(ctx, input.OrderID, input.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if !customerCancellable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeOrderNotCancellable, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		now := s.now()
		moved, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, enums.OrderStatusCancelled, now, &input.Reason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was updated concurrently")
		}

		if err := s.releaseOrderStock(ctx, tx, order); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				CancelledAt: now,
				Reason:      input.Reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		needsRefund = order.PaymentStatus.Refundable()
		cancelled := *order
		cancelled.Status = enums.OrderStatusCancelled
		cancelled.CancelledAt = &now
		if input.Reason != "" {
			reason := input.Reason
			cancelled.CancellationReason = &reason
		}
		result = &cancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Money already captured for this order goes back to the customer. The
	// cancellation itself is committed at this point; a refund failure leaves
	// the order cancelled and the refund endpoint available for another try.
	if needsRefund && s.refunder != nil {
		refunded, err := s.refunder.RefundCancelled(ctx, input.OrderID, input.Reason)
		if err != nil {
			s.logger.Error(s.logger.WithOrderID(ctx, input.OrderID.String()), "refund after cancellation failed", err)
			return nil, err
		}
		result.PaymentStatus = refunded.PaymentStatus
		result.RefundedCents = refunded.RefundedCents
	}

	s.logger.Info(s.logger.WithOrderID(ctx, input.OrderID.String()), "order cancelled")
	return result, nil
}

func (s *service) releaseOrderStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if err := s.inventory.Release(ctx, tx, item.MealID, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.OutboxAggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			From:       order.Status,
			To:         to,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

// customerCancellable limits self-service cancellation to orders the chef has
// not started preparing.
func customerCancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusConfirmed
}

type mealReleaser struct{}

// NewInventoryReleaser exposes the default inventory release implementation.
func NewInventoryReleaser() InventoryReleaser {
	return mealReleaser{}
}

func (mealReleaser) Release(ctx context.Context, tx *gorm.DB, mealID uuid.UUID, qty int) error {
	return inventory.ReleaseMeal(ctx, tx, mealID, qty)
}

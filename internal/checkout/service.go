package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/internal/cart"
	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/internal/orders"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/metrics"
	"github.com/platefulhq/plateful-backend/pkg/outbox"
	"github.com/platefulhq/plateful-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	return inventory.ReserveMeals(ctx, tx, requests)
}

// CheckoutInput captures optional data used during checkout.
type CheckoutInput struct {
	PaymentReference *string `json:"payment_reference,omitempty"`
}

// CheckoutResult returns the orders produced from the converted cart together
// with a summary of what the customer is charged.
type CheckoutResult struct {
	Orders     []models.Order `json:"orders"`
	OrderCount int            `json:"order_count"`
	TotalCents int64          `json:"total_cents"`
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, customerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

type service struct {
	tx          txRunner
	cartRepo    cart.CartRepository
	ordersRepo  orders.Repository
	reservation reservationRunner
	outbox      outboxPublisher
	pricer      Pricer
	metrics     *metrics.CheckoutMetrics
	logger      *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.CartRepository,
	ordersRepo orders.Repository,
	reservation reservationRunner,
	publisher outboxPublisher,
	pricer Pricer,
	m *metrics.CheckoutMetrics,
	log *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if reservation == nil {
		reservation = reservationEngine{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		ordersRepo:  ordersRepo,
		reservation: reservation,
		outbox:      publisher,
		pricer:      pricer,
		metrics:     m,
		logger:      log,
		now:         time.Now,
	}, nil
}

// Execute converts the customer's active cart into one order per chef inside
// a single transaction. Any failure (empty cart, incomplete address, a single
// unavailable meal) rolls the whole conversion back, reservations included.
func (s *service) Execute(ctx context.Context, customerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		record, err := cartRepo.FindActiveByCustomer(ctx, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "no active cart to check out")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if record.ExpiresAt.Before(s.now()) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart has expired")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart contains no items")
		}
		if record.DeliveryMode == enums.DeliveryModeDelivery {
			if record.DeliveryAddress == nil || !record.DeliveryAddress.IsComplete() {
				return pkgerrors.New(pkgerrors.CodeIncompleteDeliveryAddress, "a complete delivery address is required")
			}
		}

		if err := s.reserveCartItems(ctx, tx, record); err != nil {
			return err
		}

		created, err := s.createChefOrders(ctx, tx, ordersRepo, record, input)
		if err != nil {
			return err
		}

		if err := cartRepo.UpdateStatus(ctx, record.ID, customerID, enums.CartStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}

		var grandTotal int64
		for _, order := range created {
			grandTotal += order.TotalCents
		}
		result = &CheckoutResult{Orders: created, OrderCount: len(created), TotalCents: grandTotal}
		return nil
	})
	if err != nil {
		s.metrics.IncAttempt(checkoutOutcome(err))
		return nil, err
	}

	s.metrics.IncAttempt("success")
	s.metrics.AddOrders(len(result.Orders))
	logCtx := s.logger.WithCustomerID(ctx, customerID.String())
	s.logger.Info(s.logger.WithField(logCtx, "orders", len(result.Orders)), "checkout completed")
	return result, nil
}

// reserveCartItems decrements meal availability for every line. Partial
// failure surfaces the full failure list; the surrounding transaction rolls
// back the decrements that did land.
func (s *service) reserveCartItems(ctx context.Context, tx *gorm.DB, record *models.CartRecord) error {
	requests := make([]inventory.ReservationRequest, len(record.Items))
	for i, item := range record.Items {
		requests[i] = inventory.ReservationRequest{
			CartItemID: item.ID,
			MealID:     item.MealID,
			Qty:        item.Quantity,
		}
	}

	results, err := s.reservation.Reserve(ctx, tx, requests)
	if err != nil {
		return err
	}

	nameByItem := make(map[uuid.UUID]string, len(record.Items))
	for _, item := range record.Items {
		nameByItem[item.ID] = item.Name
	}

	var failures []map[string]any
	for _, res := range results {
		if res.Reserved {
			continue
		}
		failures = append(failures, map[string]any{
			"meal_id": res.MealID,
			"name":    nameByItem[res.CartItemID],
			"reason":  res.Reason,
		})
	}
	if len(failures) > 0 {
		return pkgerrors.New(pkgerrors.CodeItemsUnavailable, "some items are no longer available").
			WithDetails(map[string]any{"items": failures})
	}
	return nil
}

// createChefOrders groups cart lines by chef and creates one priced order per
// chef, preserving first-seen chef order.
func (s *service) createChefOrders(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, record *models.CartRecord, input CheckoutInput) ([]models.Order, error) {
	chefOrder := make([]uuid.UUID, 0, 2)
	grouped := make(map[uuid.UUID][]models.CartItem)
	for _, item := range record.Items {
		if _, seen := grouped[item.ChefID]; !seen {
			chefOrder = append(chefOrder, item.ChefID)
		}
		grouped[item.ChefID] = append(grouped[item.ChefID], item)
	}

	created := make([]models.Order, 0, len(chefOrder))
	for _, chefID := range chefOrder {
		items := grouped[chefID]

		var subtotal int64
		for _, item := range items {
			subtotal += item.UnitPriceCents * int64(item.Quantity)
		}
		quote := s.pricer.Price(subtotal, record.DeliveryMode, record.PromoCodes)

		order := &models.Order{
			CartID:           record.ID,
			CustomerID:       record.CustomerID,
			ChefID:           chefID,
			Status:           enums.OrderStatusPending,
			PaymentStatus:    enums.PaymentStatusPending,
			DeliveryMode:     record.DeliveryMode,
			DeliveryAddress:  record.DeliveryAddress,
			Currency:         record.Currency,
			SubtotalCents:    quote.SubtotalCents,
			TaxCents:         quote.TaxCents,
			DeliveryFeeCents: quote.DeliveryFeeCents,
			ServiceFeeCents:  quote.ServiceFeeCents,
			DiscountCents:    quote.DiscountCents,
			TotalCents:       quote.TotalCents,
		}
		// An upstream payment reference means the money already settled, so
		// every order starts paid. The correlation lands on each order; the
		// exact gateway reference stays unique, so only a single order may
		// carry it directly.
		if input.PaymentReference != nil {
			order.PaymentStatus = enums.PaymentStatusPaid
			order.PaymentCorrelation = input.PaymentReference
			if len(chefOrder) == 1 {
				order.PaymentRef = input.PaymentReference
			}
		}

		saved, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		lineItems := make([]models.OrderLineItem, 0, len(items))
		for _, item := range items {
			lineItems = append(lineItems, models.OrderLineItem{
				OrderID:        saved.ID,
				MealID:         item.MealID,
				ChefID:         item.ChefID,
				Name:           item.Name,
				UnitPriceCents: item.UnitPriceCents,
				Qty:            item.Quantity,
				LineTotalCents: item.UnitPriceCents * int64(item.Quantity),
			})
		}
		if err := ordersRepo.CreateLineItems(ctx, lineItems); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
		}
		saved.Items = lineItems

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   saved.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:     saved.ID,
				CartID:      record.ID,
				CustomerID:  record.CustomerID,
				OrderNumber: saved.OrderNumber,
				TotalCents:  saved.TotalCents,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, err
		}

		created = append(created, *saved)
	}
	return created, nil
}

func checkoutOutcome(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "error"
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/internal/orders"
	"github.com/platefulhq/plateful-backend/pkg/config"
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

// CreateIntentInput authorizes a payment against an order.
type CreateIntentInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	SourceID    string
	AmountCents int64
}

// ConfirmInput captures a previously authorized payment by its gateway
// reference.
type ConfirmInput struct {
	Reference  string
	CustomerID uuid.UUID
}

// RetryInput re-drives capture for a failed payment with backoff.
type RetryInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	MaxAttempts int
}

// RefundInput issues a full or partial refund. A nil amount refunds the
// remaining balance.
type RefundInput struct {
	OrderID     uuid.UUID
	AmountCents *int64
	Reason      string
}

// GatewayEvent is a normalized webhook notification from the gateway.
type GatewayEvent struct {
	EventID    string
	Type       string
	PaymentRef string
	Status     string
}

// Service reconciles local payment state against the gateway.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*models.Order, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error)
	Retry(ctx context.Context, input RetryInput) (*models.Order, error)
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) error
	Ledger(ctx context.Context, orderID uuid.UUID) ([]models.PaymentLedgerEntry, error)
}

type service struct {
	orders  orders.Repository
	ledger  Repository
	tx      txRunner
	gateway Gateway
	outbox  outboxPublisher
	metrics *metrics.PaymentMetrics
	cfg     config.PaymentsConfig
	logger  *logger.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	release func(ctx context.Context, tx *gorm.DB, mealID uuid.UUID, qty int) error
	now     func() time.Time
}

// NewService builds the payment reconciliation service.
func NewService(
	ordersRepo orders.Repository,
	ledgerRepo Repository,
	tx txRunner,
	gateway Gateway,
	publisher outboxPublisher,
	m *metrics.PaymentMetrics,
	cfg config.PaymentsConfig,
	log *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:  ordersRepo,
		ledger:  ledgerRepo,
		tx:      tx,
		gateway: gateway,
		outbox:  publisher,
		metrics: m,
		cfg:     cfg,
		logger:  log,
		sleep:   sleepContext,
		release: inventory.ReleaseMeal,
		now:     time.Now,
	}, nil
}

type cancellationRefunder struct {
	svc Service
}

// NewCancellationRefunder adapts the payment service so the orders service can
// return money when a paid order is cancelled.
func NewCancellationRefunder(svc Service) orders.PaymentRefunder {
	return cancellationRefunder{svc: svc}
}

func (r cancellationRefunder) RefundCancelled(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return r.svc.Refund(ctx, RefundInput{OrderID: orderID, Reason: reason})
}

// CreateIntent authorizes the order total with the gateway and stores the
// resulting payment reference. The idempotency key is derived from the order
// so a replayed call cannot double-authorize.
func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	order, err := s.loadForCustomer(ctx, input.OrderID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if input.AmountCents != order.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount does not match order total").
			WithDetails(map[string]any{
				"expected_cents": order.TotalCents,
				"got_cents":      input.AmountCents,
			})
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "payment already processed").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if order.PaymentRef != nil {
		return order, nil
	}

	payment, err := s.gateway.Authorize(ctx, AuthorizeParams{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		SourceID:       input.SourceID,
		AmountCents:    order.TotalCents,
		Currency:       order.Currency,
		IdempotencyKey: fmt.Sprintf("intent-%s", order.ID),
	})
	if err != nil {
		s.metrics.IncAttempt("authorize_failed")
		return nil, err
	}

	updates := map[string]any{
		"payment_ref": payment.Reference,
		"updated_at":  s.now(),
	}
	moved, err := s.orders.UpdatePaymentFieldsGuarded(ctx, order.ID, enums.PaymentStatusPending, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment state changed concurrently")
	}
	s.metrics.IncAttempt("authorized")

	ref := payment.Reference
	order.PaymentRef = &ref
	s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), "payment intent created")
	return order, nil
}

// Confirm captures the authorized payment and converges the order's payment
// state. A webhook arriving first makes this a no-op.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	order, err := s.orders.FindByPaymentRef(ctx, input.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "payment is not awaiting capture").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	captured, err := s.captureOnce(ctx, order)
	if err != nil {
		return nil, err
	}
	return captured, nil
}

// Retry re-attempts capture of a failed payment with exponential backoff. The
// payment stays failed when every attempt loses.
func (s *service) Retry(ctx context.Context, input RetryInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	order, err := s.loadForCustomer(ctx, input.OrderID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}
	if order.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "only failed payments can be retried").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if order.PaymentRef == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "order has no payment intent")
	}

	attempts := input.MaxAttempts
	if attempts <= 0 || attempts > s.cfg.MaxAttempts {
		attempts = s.cfg.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		delay := s.cfg.BackoffBase << attempt
		if err := s.sleep(ctx, delay); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retry interrupted")
		}

		payment, err := s.gateway.Capture(ctx, *order.PaymentRef)
		if err != nil {
			lastErr = err
			s.metrics.IncAttempt("retry_failed")
			continue
		}
		if !payment.Settled() {
			lastErr = pkgerrors.New(pkgerrors.CodeGatewayError, "gateway did not settle the payment")
			s.metrics.IncAttempt("retry_failed")
			continue
		}

		if err := s.markPaid(ctx, order, payment); err != nil {
			return nil, err
		}
		s.metrics.IncAttempt("retry_succeeded")
		paid := *order
		paid.PaymentStatus = enums.PaymentStatusPaid
		return &paid, nil
	}

	s.metrics.IncAttempt("retry_exhausted")
	return nil, pkgerrors.Wrap(pkgerrors.CodePaymentRetryExhausted, lastErr, "payment retry attempts exhausted").
		WithDetails(map[string]any{"attempts": attempts})
}

// Refund returns money against a captured payment. Exact remaining-balance
// refunds settle the order as refunded; anything less leaves it partially
// refunded.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.PaymentStatus.Refundable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "payment is not refundable").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if order.PaymentRef == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPaymentStatus, "order has no payment reference")
	}

	remaining := order.TotalCents - order.RefundedCents
	amount := remaining
	if input.AmountCents != nil {
		amount = *input.AmountCents
	}
	if amount <= 0 || amount > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRefundAmount, "refund amount out of range").
			WithDetails(map[string]any{
				"requested_cents": amount,
				"remaining_cents": remaining,
			})
	}

	gatewayRefund, err := s.gateway.Refund(ctx, RefundParams{
		PaymentRef:     *order.PaymentRef,
		AmountCents:    amount,
		Currency:       order.Currency,
		Reason:         input.Reason,
		IdempotencyKey: fmt.Sprintf("refund-%s", uuid.NewString()),
	})
	if err != nil {
		s.metrics.IncRefund("failed")
		return nil, err
	}

	refundedTotal := order.RefundedCents + amount
	target := enums.PaymentStatusPartiallyRefunded
	if refundedTotal == order.TotalCents {
		target = enums.PaymentStatusRefunded
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		updates := map[string]any{
			"payment_status": target,
			"refunded_cents": refundedTotal,
			"updated_at":     now,
		}
		moved, err := ordersRepo.UpdatePaymentFieldsGuarded(ctx, order.ID, order.PaymentStatus, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment state changed concurrently")
		}

		// Refunding the full balance cancels any order that is still in
		// flight and puts its stock back on sale. An order cancelled first
		// (or already delivered) loses the guard and keeps its status.
		if target == enums.PaymentStatusRefunded &&
			order.Status != enums.OrderStatusCancelled &&
			orders.CanTransition(order.Status, enums.OrderStatusCancelled) {
			var reason *string
			if input.Reason != "" {
				r := input.Reason
				reason = &r
			}
			cancelled, err := ordersRepo.UpdateStatusGuarded(ctx, order.ID, order.Status, enums.OrderStatusCancelled, now, reason)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order on refund")
			}
			if cancelled {
				for _, item := range order.Items {
					if err := s.release(ctx, tx, item.MealID, item.Qty); err != nil {
						return err
					}
				}
				cancelEvent := outbox.DomainEvent{
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
				if err := s.outbox.Emit(ctx, tx, cancelEvent); err != nil {
					return err
				}
				order.Status = enums.OrderStatusCancelled
				order.CancelledAt = &now
			}
		}

		record := &models.Refund{
			OrderID:     order.ID,
			AmountCents: amount,
		}
		if gatewayRefund != nil && gatewayRefund.Reference != "" {
			ref := gatewayRefund.Reference
			record.GatewayRefundID = &ref
		}
		if input.Reason != "" {
			reason := input.Reason
			record.Reason = &reason
		}
		if gatewayRefund != nil && gatewayRefund.Status == GatewayStatusCompleted {
			settled := now
			record.SettledAt = &settled
		}
		if _, err := ledgerRepo.InsertRefund(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}

		entry := &models.PaymentLedgerEntry{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Type:        enums.EventPaymentRefunded,
			AmountCents: amount,
			PaymentRef:  order.PaymentRef,
		}
		if err := ledgerRepo.InsertLedgerEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund ledger entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentRefundedEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				AmountCents: amount,
				Partial:     target == enums.PaymentStatusPartiallyRefunded,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncRefund("succeeded")

	logCtx := s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(s.logger.WithField(logCtx, "amount_cents", amount), "refund issued")

	refunded := *order
	refunded.PaymentStatus = target
	refunded.RefundedCents = refundedTotal
	return &refunded, nil
}

// HandleGatewayEvent folds a gateway webhook into local state. Events for
// unknown payment references are acknowledged so the gateway stops resending
// them; duplicates converge without side effects.
func (s *service) HandleGatewayEvent(ctx context.Context, event GatewayEvent) error {
	if event.PaymentRef == "" {
		s.metrics.IncWebhook(event.Type, "invalid")
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	order, err := s.orders.FindByPaymentRef(ctx, event.PaymentRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncWebhook(event.Type, "unmatched")
			s.logger.Warn(s.logger.WithField(ctx, "payment_ref", event.PaymentRef), "webhook for unknown payment reference")
			return nil
		}
		s.metrics.IncWebhook(event.Type, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for webhook")
	}

	switch event.Status {
	case GatewayStatusCompleted:
		if order.PaymentStatus == enums.PaymentStatusPaid {
			s.metrics.IncWebhook(event.Type, "duplicate")
			return nil
		}
		if order.PaymentStatus != enums.PaymentStatusPending && order.PaymentStatus != enums.PaymentStatusFailed {
			s.metrics.IncWebhook(event.Type, "ignored")
			return nil
		}
		payment := &GatewayPayment{
			Reference:   event.PaymentRef,
			Status:      GatewayStatusCompleted,
			AmountCents: order.TotalCents,
		}
		if err := s.markPaid(ctx, order, payment); err != nil {
			s.metrics.IncWebhook(event.Type, "error")
			return err
		}
		s.metrics.IncWebhook(event.Type, "applied")
		return nil

	case GatewayStatusFailed, GatewayStatusCanceled:
		if order.PaymentStatus == enums.PaymentStatusFailed {
			s.metrics.IncWebhook(event.Type, "duplicate")
			return nil
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			s.metrics.IncWebhook(event.Type, "ignored")
			return nil
		}
		reason := fmt.Sprintf("gateway reported %s", event.Status)
		if err := s.markFailed(ctx, order, reason); err != nil {
			s.metrics.IncWebhook(event.Type, "error")
			return err
		}
		s.metrics.IncWebhook(event.Type, "applied")
		return nil

	default:
		s.metrics.IncWebhook(event.Type, "ignored")
		return nil
	}
}

// Ledger returns the immutable money history for an order.
func (s *service) Ledger(ctx context.Context, orderID uuid.UUID) ([]models.PaymentLedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := s.ledger.ListLedgerByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment ledger")
	}
	return entries, nil
}

func (s *service) captureOnce(ctx context.Context, order *models.Order) (*models.Order, error) {
	payment, err := s.gateway.Capture(ctx, *order.PaymentRef)
	if err != nil {
		if domainErr := pkgerrors.As(err); domainErr != nil && domainErr.Code() == pkgerrors.CodePaymentFailed {
			if markErr := s.markFailed(ctx, order, domainErr.Error()); markErr != nil {
				return nil, markErr
			}
			s.metrics.IncAttempt("failed")
			return nil, err
		}
		s.metrics.IncAttempt("gateway_error")
		return nil, err
	}
	if !payment.Settled() {
		s.metrics.IncAttempt("gateway_error")
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway did not settle the payment").
			WithDetails(map[string]any{"gateway_status": payment.Status})
	}

	if err := s.markPaid(ctx, order, payment); err != nil {
		return nil, err
	}
	s.metrics.IncAttempt("succeeded")

	paid := *order
	paid.PaymentStatus = enums.PaymentStatusPaid
	return &paid, nil
}

// markPaid converges the order to paid in one transaction: guarded payment
// move, guarded pending→confirmed lifecycle move, ledger entry, and outbox
// events. Losing the payment guard means another path already settled the
// payment, which is fine.
func (s *service) markPaid(ctx context.Context, order *models.Order, payment *GatewayPayment) error {
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"failure_reason": nil,
			"updated_at":     now,
		}
		moved, err := ordersRepo.UpdatePaymentFieldsGuarded(ctx, order.ID, order.PaymentStatus, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}
		if !moved {
			return nil
		}

		// A settled payment confirms a pending order. Losing this guard means
		// the chef already moved the order along.
		confirmed, err := ordersRepo.UpdateStatusGuarded(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed, now, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order on payment")
		}
		if confirmed {
			statusEvent := outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.OutboxAggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderStatusChangedEvent{
					OrderID:    order.ID,
					CustomerID: order.CustomerID,
					From:       enums.OrderStatusPending,
					To:         enums.OrderStatusConfirmed,
				},
			}
			if err := s.outbox.Emit(ctx, tx, statusEvent); err != nil {
				return err
			}
			order.Status = enums.OrderStatusConfirmed
			order.ConfirmedAt = &now
		}

		entry := &models.PaymentLedgerEntry{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Type:        enums.EventPaymentSucceeded,
			AmountCents: payment.AmountCents,
			PaymentRef:  order.PaymentRef,
		}
		if entry.AmountCents == 0 {
			entry.AmountCents = order.TotalCents
		}
		if err := ledgerRepo.InsertLedgerEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment ledger entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentSucceeded,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentSucceededEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				PaymentRef:  payment.Reference,
				AmountCents: entry.AmountCents,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) markFailed(ctx context.Context, order *models.Order, reason string) error {
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		updates := map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     now,
		}
		moved, err := ordersRepo.UpdatePaymentFieldsGuarded(ctx, order.ID, order.PaymentStatus, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		if !moved {
			return nil
		}

		entry := &models.PaymentLedgerEntry{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Type:        enums.EventPaymentFailed,
			AmountCents: order.TotalCents,
			PaymentRef:  order.PaymentRef,
		}
		if err := ledgerRepo.InsertLedgerEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment ledger entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				PaymentRef: derefString(order.PaymentRef),
				Reason:     reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) loadForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByIDAndCustomer(ctx, orderID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

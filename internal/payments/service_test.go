package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/internal/orders"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/metrics"
	"github.com/platefulhq/plateful-backend/pkg/outbox"
	"github.com/platefulhq/plateful-backend/pkg/pagination"
)

func TestServiceCreateIntentAttachesPaymentRef(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.authorize = func(params AuthorizeParams) (*GatewayPayment, error) {
		if params.AmountCents != 3478 {
			t.Fatalf("expected authorize for 3478 cents, got %d", params.AmountCents)
		}
		return &GatewayPayment{Reference: "sq-pay-1", Status: GatewayStatusApproved, AmountCents: params.AmountCents}, nil
	}

	got, err := fixture.svc.CreateIntent(context.Background(), CreateIntentInput{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		SourceID:    "cnon:card-nonce",
		AmountCents: 3478,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentRef == nil || *got.PaymentRef != "sq-pay-1" {
		t.Fatalf("expected payment ref sq-pay-1, got %v", got.PaymentRef)
	}
	if fixture.repo.order.PaymentRef == nil || *fixture.repo.order.PaymentRef != "sq-pay-1" {
		t.Fatalf("payment ref not persisted: %+v", fixture.repo.order)
	}
}

func TestServiceCreateIntentRejectsAmountMismatch(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	fixture := newPaymentsFixture(t, order)

	_, err := fixture.svc.CreateIntent(context.Background(), CreateIntentInput{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		SourceID:    "cnon:card-nonce",
		AmountCents: 3477,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAmountMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.gateway.authorizeCalls != 0 {
		t.Fatalf("gateway should not be called on a mismatched amount")
	}
}

func TestServiceCreateIntentIsIdempotentPerOrder(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-existing"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.CreateIntent(context.Background(), CreateIntentInput{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		SourceID:    "cnon:card-nonce",
		AmountCents: 3478,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentRef == nil || *got.PaymentRef != ref {
		t.Fatalf("expected existing ref to be returned, got %v", got.PaymentRef)
	}
	if fixture.gateway.authorizeCalls != 0 {
		t.Fatalf("expected no second authorization, got %d", fixture.gateway.authorizeCalls)
	}
}

func TestServiceConfirmMarksPaidAndEmits(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.capture = func(reference string) (*GatewayPayment, error) {
		return &GatewayPayment{Reference: reference, Status: GatewayStatusCompleted, AmountCents: 3478}, nil
	}

	got, err := fixture.svc.Confirm(context.Background(), ConfirmInput{Reference: ref, CustomerID: order.CustomerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	if fixture.repo.order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("paid status not persisted: %s", fixture.repo.order.PaymentStatus)
	}
	if len(fixture.ledger.entries) != 1 || fixture.ledger.entries[0].Type != enums.EventPaymentSucceeded {
		t.Fatalf("expected one payment_succeeded ledger entry, got %+v", fixture.ledger.entries)
	}
	if len(fixture.events.events) != 2 ||
		fixture.events.events[0].EventType != enums.EventOrderStatusChanged ||
		fixture.events.events[1].EventType != enums.EventPaymentSucceeded {
		t.Fatalf("expected status_changed then payment_succeeded, got %+v", fixture.events.events)
	}
}

func TestServiceConfirmAdvancesPendingOrder(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.Confirm(context.Background(), ConfirmInput{Reference: ref, CustomerID: order.CustomerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %s", got.Status)
	}
	if got.ConfirmedAt == nil {
		t.Fatal("confirmed_at not set")
	}
	if fixture.repo.order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("status move not persisted, got %s", fixture.repo.order.Status)
	}
}

func TestServiceConfirmKeepsAdvancedOrderStatus(t *testing.T) {
	t.Parallel()

	// The chef already accepted the order, so settling the payment must not
	// rewind or touch the lifecycle.
	order := pendingOrder(3478)
	order.Status = enums.OrderStatusPreparing
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.Confirm(context.Background(), ConfirmInput{Reference: ref, CustomerID: order.CustomerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != enums.OrderStatusPreparing {
		t.Fatalf("expected preparing, got %s", got.Status)
	}
	if len(fixture.events.events) != 1 || fixture.events.events[0].EventType != enums.EventPaymentSucceeded {
		t.Fatalf("expected only payment_succeeded, got %+v", fixture.events.events)
	}
}

func TestServiceConfirmAlreadyPaidIsNoOp(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusPaid
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.Confirm(context.Background(), ConfirmInput{Reference: ref, CustomerID: order.CustomerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	if fixture.gateway.captureCalls != 0 {
		t.Fatalf("expected no capture for an already paid order")
	}
}

func TestServiceConfirmHardDeclineMarksFailed(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.capture = func(reference string) (*GatewayPayment, error) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "card declined")
	}

	_, err := fixture.svc.Confirm(context.Background(), ConfirmInput{Reference: ref, CustomerID: order.CustomerID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentFailed {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.repo.order.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", fixture.repo.order.PaymentStatus)
	}
	if len(fixture.events.events) != 1 || fixture.events.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected one payment_failed event, got %+v", fixture.events.events)
	}
}

func TestServiceRetryExhaustionKeepsPaymentFailed(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusFailed
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.capture = func(reference string) (*GatewayPayment, error) {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway timeout")
	}

	_, err := fixture.svc.Retry(context.Background(), RetryInput{OrderID: order.ID, CustomerID: order.CustomerID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentRetryExhausted {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(fixture.sleeps.delays) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), fixture.sleeps.delays)
	}
	for i, d := range want {
		if fixture.sleeps.delays[i] != d {
			t.Fatalf("sleep %d: expected %s, got %s", i, d, fixture.sleeps.delays[i])
		}
	}
	if fixture.repo.order.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("payment should stay failed after exhaustion, got %s", fixture.repo.order.PaymentStatus)
	}
}

func TestServiceRetrySucceedsMidway(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusFailed
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.capture = func(reference string) (*GatewayPayment, error) {
		if fixture.gateway.captureCalls < 2 {
			return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "gateway timeout")
		}
		return &GatewayPayment{Reference: reference, Status: GatewayStatusCompleted, AmountCents: 3478}, nil
	}

	got, err := fixture.svc.Retry(context.Background(), RetryInput{OrderID: order.ID, CustomerID: order.CustomerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(fixture.sleeps.delays) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), fixture.sleeps.delays)
	}
}

func TestServiceRefundPartialThenFull(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusPaid
	fixture := newPaymentsFixture(t, order)
	fixture.gateway.refund = func(params RefundParams) (*GatewayRefund, error) {
		return &GatewayRefund{Reference: "sq-refund-1", Status: GatewayStatusCompleted, AmountCents: params.AmountCents}, nil
	}

	partial := int64(1000)
	got, err := fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID, AmountCents: &partial, Reason: "damaged packaging"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially refunded, got %s", got.PaymentStatus)
	}
	if got.RefundedCents != 1000 {
		t.Fatalf("expected 1000 refunded cents, got %d", got.RefundedCents)
	}

	got, err = fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID, Reason: "order cancelled"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.PaymentStatus)
	}
	if got.RefundedCents != 3478 {
		t.Fatalf("expected full 3478 refunded, got %d", got.RefundedCents)
	}
	if len(fixture.ledger.refunds) != 2 {
		t.Fatalf("expected two refund rows, got %d", len(fixture.ledger.refunds))
	}
	// The exhausting refund also cancels the still-pending order.
	wantEvents := []enums.OutboxEventType{enums.EventPaymentRefunded, enums.EventOrderCancelled, enums.EventPaymentRefunded}
	if len(fixture.events.events) != len(wantEvents) {
		t.Fatalf("expected %d events, got %+v", len(wantEvents), fixture.events.events)
	}
	for i, want := range wantEvents {
		if fixture.events.events[i].EventType != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, fixture.events.events[i].EventType)
		}
	}
}

func TestServiceFullRefundCancelsOrderAndRestocks(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	mealID := uuid.New()
	order.Items = []models.OrderLineItem{{OrderID: order.ID, MealID: mealID, Qty: 2}}
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID, Reason: "chef unavailable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.PaymentStatus)
	}
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %s", got.Status)
	}
	if fixture.repo.order.Status != enums.OrderStatusCancelled {
		t.Fatalf("cancellation not persisted, got %s", fixture.repo.order.Status)
	}
	if fixture.repo.lastStatusNote == nil || *fixture.repo.lastStatusNote != "chef unavailable" {
		t.Fatalf("refund reason not recorded on the cancellation: %v", fixture.repo.lastStatusNote)
	}
	if fixture.releases[mealID] != 2 {
		t.Fatalf("expected 2 units back on sale, got %d", fixture.releases[mealID])
	}
	if len(fixture.events.events) != 2 ||
		fixture.events.events[0].EventType != enums.EventOrderCancelled ||
		fixture.events.events[1].EventType != enums.EventPaymentRefunded {
		t.Fatalf("expected order_cancelled then payment_refunded, got %+v", fixture.events.events)
	}
}

func TestServiceFullRefundOfDeliveredOrderKeepsStatus(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	order.Status = enums.OrderStatusDelivered
	order.PaymentStatus = enums.PaymentStatusPaid
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)

	got, err := fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID, Reason: "goodwill"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.PaymentStatus)
	}
	if fixture.repo.order.Status != enums.OrderStatusDelivered {
		t.Fatalf("delivered order must keep its status, got %s", fixture.repo.order.Status)
	}
	if len(fixture.releases) != 0 {
		t.Fatalf("delivered order must not restock, got %v", fixture.releases)
	}
}

func TestServiceRefundRejectsOverdraw(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusPartiallyRefunded
	order.RefundedCents = 3000
	fixture := newPaymentsFixture(t, order)

	amount := int64(500)
	_, err := fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID, AmountCents: &amount})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidRefundAmount {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.gateway.refundCalls != 0 {
		t.Fatalf("gateway refund should not be attempted on overdraw")
	}
}

func TestServiceRefundRequiresRefundableStatus(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	fixture := newPaymentsFixture(t, order)

	_, err := fixture.svc.Refund(context.Background(), RefundInput{OrderID: order.ID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidPaymentStatus {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceHandleGatewayEventConvergesIdempotently(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	ref := "sq-pay-1"
	order.PaymentRef = &ref
	fixture := newPaymentsFixture(t, order)

	event := GatewayEvent{EventID: "evt-1", Type: "payment.updated", PaymentRef: ref, Status: GatewayStatusCompleted}
	if err := fixture.svc.HandleGatewayEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.repo.order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", fixture.repo.order.PaymentStatus)
	}

	// Redelivery of the same notification must not double-apply.
	if err := fixture.svc.HandleGatewayEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}
	if len(fixture.events.events) != 2 {
		t.Fatalf("expected the first delivery's two events only, got %d", len(fixture.events.events))
	}
}

func TestServiceHandleGatewayEventUnknownRefIsAcked(t *testing.T) {
	t.Parallel()

	order := pendingOrder(3478)
	fixture := newPaymentsFixture(t, order)

	err := fixture.svc.HandleGatewayEvent(context.Background(), GatewayEvent{
		EventID:    "evt-2",
		Type:       "payment.updated",
		PaymentRef: "sq-pay-unknown",
		Status:     GatewayStatusCompleted,
	})
	if err != nil {
		t.Fatalf("expected unknown references to be acknowledged, got %v", err)
	}
	if fixture.repo.order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order should be untouched, got %s", fixture.repo.order.PaymentStatus)
	}
}

// Fixtures and stubs

type paymentsFixture struct {
	svc      Service
	repo     *stubPaymentOrdersRepo
	ledger   *stubLedgerRepo
	gateway  *stubGateway
	events   *captureOutbox
	sleeps   *recordedSleeps
	releases map[uuid.UUID]int
}

func newPaymentsFixture(t *testing.T, order *models.Order) *paymentsFixture {
	t.Helper()

	repo := &stubPaymentOrdersRepo{order: order}
	ledger := &stubLedgerRepo{}
	gateway := &stubGateway{}
	events := &captureOutbox{}
	sleeps := &recordedSleeps{}

	log := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	cfg := config.PaymentsConfig{MaxAttempts: 3, BackoffBase: 2 * time.Second}

	svc, err := NewService(repo, ledger, stubTxRunner{}, gateway, events, metrics.NewPaymentMetrics(nil), cfg, log)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	svc.(*service).sleep = func(ctx context.Context, d time.Duration) error {
		sleeps.delays = append(sleeps.delays, d)
		return nil
	}
	releases := map[uuid.UUID]int{}
	svc.(*service).release = func(ctx context.Context, tx *gorm.DB, mealID uuid.UUID, qty int) error {
		releases[mealID] += qty
		return nil
	}

	return &paymentsFixture{svc: svc, repo: repo, ledger: ledger, gateway: gateway, events: events, sleeps: sleeps, releases: releases}
}

func pendingOrder(totalCents int64) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		ChefID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Currency:      enums.CurrencyUSD,
		TotalCents:    totalCents,
	}
}

type recordedSleeps struct {
	delays []time.Duration
}

type stubPaymentOrdersRepo struct {
	order          *models.Order
	lastStatusNote *string
}

func (s *stubPaymentOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubPaymentOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubPaymentOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	return nil
}

func (s *stubPaymentOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubPaymentOrdersRepo) FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id || s.order.CustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubPaymentOrdersRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	if s.order == nil || s.order.PaymentRef == nil || *s.order.PaymentRef != paymentRef {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubPaymentOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubPaymentOrdersRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time, note *string) (bool, error) {
	if s.order == nil || s.order.ID != id || s.order.Status != from {
		return false, nil
	}
	s.order.Status = to
	s.lastStatusNote = note
	return true, nil
}

func (s *stubPaymentOrdersRepo) UpdatePaymentFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.apply(updates)
	return nil
}

func (s *stubPaymentOrdersRepo) UpdatePaymentFieldsGuarded(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (bool, error) {
	if s.order == nil || s.order.ID != id || s.order.PaymentStatus != from {
		return false, nil
	}
	s.apply(updates)
	return true, nil
}

func (s *stubPaymentOrdersRepo) apply(updates map[string]any) {
	if status, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		s.order.PaymentStatus = status
	}
	if ref, ok := updates["payment_ref"].(string); ok {
		s.order.PaymentRef = &ref
	}
	if refunded, ok := updates["refunded_cents"].(int64); ok {
		s.order.RefundedCents = refunded
	}
	if reason, ok := updates["failure_reason"].(string); ok {
		s.order.FailureReason = &reason
	}
}

type stubLedgerRepo struct {
	entries []models.PaymentLedgerEntry
	refunds []models.Refund
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedgerRepo) InsertLedgerEntry(ctx context.Context, entry *models.PaymentLedgerEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubLedgerRepo) ListLedgerByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentLedgerEntry, error) {
	return s.entries, nil
}

func (s *stubLedgerRepo) InsertRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	s.refunds = append(s.refunds, *refund)
	return refund, nil
}

func (s *stubLedgerRepo) ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	return s.refunds, nil
}

type stubGateway struct {
	authorize      func(params AuthorizeParams) (*GatewayPayment, error)
	capture        func(reference string) (*GatewayPayment, error)
	fetch          func(reference string) (*GatewayPayment, error)
	refund         func(params RefundParams) (*GatewayRefund, error)
	authorizeCalls int
	captureCalls   int
	refundCalls    int
}

func (s *stubGateway) Authorize(ctx context.Context, params AuthorizeParams) (*GatewayPayment, error) {
	s.authorizeCalls++
	if s.authorize == nil {
		return &GatewayPayment{Reference: "sq-pay-stub", Status: GatewayStatusApproved, AmountCents: params.AmountCents}, nil
	}
	return s.authorize(params)
}

func (s *stubGateway) Capture(ctx context.Context, reference string) (*GatewayPayment, error) {
	s.captureCalls++
	if s.capture == nil {
		return &GatewayPayment{Reference: reference, Status: GatewayStatusCompleted}, nil
	}
	return s.capture(reference)
}

func (s *stubGateway) Fetch(ctx context.Context, reference string) (*GatewayPayment, error) {
	if s.fetch == nil {
		return &GatewayPayment{Reference: reference, Status: GatewayStatusCompleted}, nil
	}
	return s.fetch(reference)
}

func (s *stubGateway) Refund(ctx context.Context, params RefundParams) (*GatewayRefund, error) {
	s.refundCalls++
	if s.refund == nil {
		return &GatewayRefund{Reference: "sq-refund-stub", Status: GatewayStatusCompleted, AmountCents: params.AmountCents}, nil
	}
	return s.refund(params)
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type captureOutbox struct {
	events []outbox.DomainEvent
}

func (c *captureOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

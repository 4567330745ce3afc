package checkout

import (
	"context"
	"io"
	"testing"
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
	"github.com/platefulhq/plateful-backend/pkg/pagination"
	"github.com/platefulhq/plateful-backend/pkg/types"
)

func activeCart(customerID uuid.UUID, items []models.CartItem) *models.CartRecord {
	return &models.CartRecord{
		ID:           uuid.New(),
		CustomerID:   customerID,
		Status:       enums.CartStatusActive,
		DeliveryMode: enums.DeliveryModePickup,
		Currency:     enums.CurrencyUSD,
		ExpiresAt:    time.Now().Add(time.Hour),
		Items:        items,
	}
}

func TestServiceExecuteSingleChef(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	chefID := uuid.New()
	record := activeCart(customerID, []models.CartItem{
		{ID: uuid.New(), MealID: uuid.New(), ChefID: chefID, Name: "Paneer Tikka Plate", Quantity: 2, UnitPriceCents: 1599},
	})
	cartRepo := &stubCheckoutCartRepo{record: record}
	ordersRepo := &stubCheckoutOrdersRepo{}
	events := &captureOutbox{}
	svc := newTestCheckoutService(t, cartRepo, ordersRepo, allReserved{}, events)

	ref := "sq-ref-1"
	result, err := svc.Execute(context.Background(), customerID, CheckoutInput{PaymentReference: &ref})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(result.Orders))
	}

	order := result.Orders[0]
	if order.ChefID != chefID || order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.SubtotalCents != 3198 || order.TaxCents != 280 || order.TotalCents != 3638 {
		t.Fatalf("unexpected totals %+v", order)
	}
	if order.PaymentRef == nil || *order.PaymentRef != ref {
		t.Fatal("expected payment reference attached to the single order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("a settled reference must seed a paid order, got %s", order.PaymentStatus)
	}
	if order.PaymentCorrelation == nil || *order.PaymentCorrelation != ref {
		t.Fatalf("expected payment correlation %q, got %v", ref, order.PaymentCorrelation)
	}
	if result.OrderCount != 1 || result.TotalCents != 3638 {
		t.Fatalf("unexpected summary: %d orders, %d cents", result.OrderCount, result.TotalCents)
	}
	if len(order.Items) != 1 || order.Items[0].LineTotalCents != 3198 {
		t.Fatalf("unexpected line items %+v", order.Items)
	}
	if cartRepo.statusUpdates[record.ID] != enums.CartStatusConverted {
		t.Fatal("expected cart marked converted")
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order-created event, got %+v", events.events)
	}
}

func TestServiceExecuteSplitsOrdersByChef(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	chefA := uuid.New()
	chefB := uuid.New()
	record := activeCart(customerID, []models.CartItem{
		{ID: uuid.New(), MealID: uuid.New(), ChefID: chefA, Name: "Khao Soi", Quantity: 1, UnitPriceCents: 1499},
		{ID: uuid.New(), MealID: uuid.New(), ChefID: chefB, Name: "Jollof Rice", Quantity: 2, UnitPriceCents: 1250},
		{ID: uuid.New(), MealID: uuid.New(), ChefID: chefA, Name: "Mango Sticky Rice", Quantity: 1, UnitPriceCents: 650},
	})
	cartRepo := &stubCheckoutCartRepo{record: record}
	ordersRepo := &stubCheckoutOrdersRepo{}
	events := &captureOutbox{}
	svc := newTestCheckoutService(t, cartRepo, ordersRepo, allReserved{}, events)

	ref := "sq-ref-2"
	result, err := svc.Execute(context.Background(), customerID, CheckoutInput{PaymentReference: &ref})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("expected two orders, got %d", len(result.Orders))
	}
	if result.Orders[0].ChefID != chefA || result.Orders[1].ChefID != chefB {
		t.Fatalf("expected first-seen chef ordering, got %+v", result.Orders)
	}
	if result.Orders[0].SubtotalCents != 2149 || result.Orders[1].SubtotalCents != 2500 {
		t.Fatalf("unexpected per-chef subtotals %+v", result.Orders)
	}
	for _, order := range result.Orders {
		if order.PaymentRef != nil {
			t.Fatal("a shared payment reference must not be attached to multiple orders")
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			t.Fatalf("every split order must start paid, got %s", order.PaymentStatus)
		}
		if order.PaymentCorrelation == nil || *order.PaymentCorrelation != ref {
			t.Fatalf("every split order must carry the correlation, got %v", order.PaymentCorrelation)
		}
	}
	if result.OrderCount != 2 || result.TotalCents != result.Orders[0].TotalCents+result.Orders[1].TotalCents {
		t.Fatalf("unexpected summary: %d orders, %d cents", result.OrderCount, result.TotalCents)
	}
	if len(events.events) != 2 {
		t.Fatalf("expected one event per order, got %d", len(events.events))
	}
}

func TestServiceExecuteWithoutReferenceStaysPendingPayment(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	record := activeCart(customerID, []models.CartItem{
		{ID: uuid.New(), MealID: uuid.New(), ChefID: uuid.New(), Name: "Bibimbap", Quantity: 1, UnitPriceCents: 1399},
	})
	svc := newTestCheckoutService(t, &stubCheckoutCartRepo{record: record}, &stubCheckoutOrdersRepo{}, allReserved{}, &captureOutbox{})

	result, err := svc.Execute(context.Background(), customerID, CheckoutInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := result.Orders[0]
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", order.PaymentStatus)
	}
	if order.PaymentCorrelation != nil || order.PaymentRef != nil {
		t.Fatalf("no reference was supplied, got correlation %v ref %v", order.PaymentCorrelation, order.PaymentRef)
	}
}

func TestServiceExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	record := activeCart(customerID, nil)
	svc := newTestCheckoutService(t, &stubCheckoutCartRepo{record: record}, &stubCheckoutOrdersRepo{}, allReserved{}, &captureOutbox{})

	_, err := svc.Execute(context.Background(), customerID, CheckoutInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceExecuteNoActiveCart(t *testing.T) {
	t.Parallel()

	svc := newTestCheckoutService(t, &stubCheckoutCartRepo{}, &stubCheckoutOrdersRepo{}, allReserved{}, &captureOutbox{})

	_, err := svc.Execute(context.Background(), uuid.New(), CheckoutInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeEmptyCart {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceExecuteIncompleteDeliveryAddress(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	record := activeCart(customerID, []models.CartItem{
		{ID: uuid.New(), MealID: uuid.New(), ChefID: uuid.New(), Name: "Birria Tacos", Quantity: 1, UnitPriceCents: 1450},
	})
	record.DeliveryMode = enums.DeliveryModeDelivery
	record.DeliveryAddress = &types.DeliveryAddress{Street: "44 Pine St", City: "Austin"}
	svc := newTestCheckoutService(t, &stubCheckoutCartRepo{record: record}, &stubCheckoutOrdersRepo{}, allReserved{}, &captureOutbox{})

	_, err := svc.Execute(context.Background(), customerID, CheckoutInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIncompleteDeliveryAddress {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceExecuteUnavailableItemAbortsEverything(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	soldOut := uuid.New()
	record := activeCart(customerID, []models.CartItem{
		{ID: uuid.New(), MealID: uuid.New(), ChefID: uuid.New(), Name: "Khao Soi", Quantity: 1, UnitPriceCents: 1499},
		{ID: uuid.New(), MealID: soldOut, ChefID: uuid.New(), Name: "Jollof Rice", Quantity: 3, UnitPriceCents: 1250},
	})
	cartRepo := &stubCheckoutCartRepo{record: record}
	ordersRepo := &stubCheckoutOrdersRepo{}
	svc := newTestCheckoutService(t, cartRepo, ordersRepo, rejectMeal{mealID: soldOut}, &captureOutbox{})

	_, err := svc.Execute(context.Background(), customerID, CheckoutInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeItemsUnavailable {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordersRepo.created) != 0 {
		t.Fatal("no orders may be created when any item is unavailable")
	}
	if len(cartRepo.statusUpdates) != 0 {
		t.Fatal("cart must stay active when checkout fails")
	}
}

func newTestCheckoutService(t *testing.T, cartRepo cart.CartRepository, ordersRepo orders.Repository, reservation reservationRunner, events outboxPublisher) Service {
	t.Helper()

	log := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		stubTxRunner{},
		cartRepo,
		ordersRepo,
		reservation,
		events,
		NewPricer(testCheckoutConfig(), nil),
		metrics.NewCheckoutMetrics(nil),
		log,
	)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
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

type allReserved struct{}

func (allReserved) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	results := make([]inventory.ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = inventory.ReservationResult{CartItemID: req.CartItemID, MealID: req.MealID, Reserved: true}
	}
	return results, nil
}

type rejectMeal struct {
	mealID uuid.UUID
}

func (r rejectMeal) Reserve(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	results := make([]inventory.ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = inventory.ReservationResult{CartItemID: req.CartItemID, MealID: req.MealID, Reserved: req.MealID != r.mealID}
		if req.MealID == r.mealID {
			results[i].Reason = "insufficient remaining quantity"
		}
	}
	return results, nil
}

type stubCheckoutCartRepo struct {
	record        *models.CartRecord
	statusUpdates map[uuid.UUID]enums.CartStatus
}

func (s *stubCheckoutCartRepo) WithTx(tx *gorm.DB) cart.CartRepository { return s }

func (s *stubCheckoutCartRepo) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if s.record == nil || s.record.CustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.record, nil
}

func (s *stubCheckoutCartRepo) FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.CartRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutCartRepo) Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	return record, nil
}

func (s *stubCheckoutCartRepo) Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	return record, nil
}

func (s *stubCheckoutCartRepo) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	return nil
}

func (s *stubCheckoutCartRepo) UpdateStatus(ctx context.Context, id, customerID uuid.UUID, status enums.CartStatus) error {
	if s.statusUpdates == nil {
		s.statusUpdates = map[uuid.UUID]enums.CartStatus{}
	}
	s.statusUpdates[id] = status
	return nil
}

func (s *stubCheckoutCartRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubCheckoutCartRepo) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartRecord, error) {
	return nil, nil
}

type stubCheckoutOrdersRepo struct {
	created []*models.Order
	number  int64
}

func (s *stubCheckoutOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubCheckoutOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	s.number++
	order.OrderNumber = 1000 + s.number
	s.created = append(s.created, order)
	return order, nil
}

func (s *stubCheckoutOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	return nil
}

func (s *stubCheckoutOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutOrdersRepo) FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutOrdersRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCheckoutOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubCheckoutOrdersRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time, note *string) (bool, error) {
	return true, nil
}

func (s *stubCheckoutOrdersRepo) UpdatePaymentFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubCheckoutOrdersRepo) UpdatePaymentFieldsGuarded(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (bool, error) {
	return true, nil
}

package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/pagination"
)

// OrderList is a cursor-paginated page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Repository defines persistence operations over orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	// UpdateStatusGuarded moves the order's status only when the stored row
	// still carries the observed prior status. It reports whether a row moved.
	// An optional note is persisted alongside the move.
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time, note *string) (bool, error)
	UpdatePaymentFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// UpdatePaymentFieldsGuarded applies updates only while the stored row
	// still carries the observed payment status. It reports whether a row
	// changed.
	UpdatePaymentFieldsGuarded(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) (bool, error)
}

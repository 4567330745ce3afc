package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	FindByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*models.CartRecord, error)
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	Update(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	UpdateStatus(ctx context.Context, id, customerID uuid.UUID, status enums.CartStatus) error
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartRecord, error)
}

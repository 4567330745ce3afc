package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
)

// Repository persists the payment ledger and refund records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertLedgerEntry(ctx context.Context, entry *models.PaymentLedgerEntry) error
	ListLedgerByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentLedgerEntry, error)
	InsertRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertLedgerEntry(ctx context.Context, entry *models.PaymentLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLedgerByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentLedgerEntry, error) {
	var entries []models.PaymentLedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) InsertRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *repository) ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

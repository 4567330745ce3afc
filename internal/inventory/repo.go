package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
)

// Repository defines persistence operations for meal availability rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, mealID uuid.UUID) (*models.MealAvailability, error)
	FindByIDs(ctx context.Context, mealIDs []uuid.UUID) ([]models.MealAvailability, error)
	ListByChef(ctx context.Context, chefID uuid.UUID) ([]models.MealAvailability, error)
	Save(ctx context.Context, meal *models.MealAvailability) (*models.MealAvailability, error)
	SetActive(ctx context.Context, mealID uuid.UUID, active bool) error
	SetRemainingQty(ctx context.Context, mealID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, mealID uuid.UUID) (*models.MealAvailability, error) {
	var meal models.MealAvailability
	err := r.db.WithContext(ctx).
		Where("meal_id = ?", mealID).
		First(&meal).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *repository) FindByIDs(ctx context.Context, mealIDs []uuid.UUID) ([]models.MealAvailability, error) {
	var rows []models.MealAvailability
	if len(mealIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("meal_id IN ?", mealIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByChef(ctx context.Context, chefID uuid.UUID) ([]models.MealAvailability, error) {
	var rows []models.MealAvailability
	err := r.db.WithContext(ctx).
		Where("chef_id = ?", chefID).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, meal *models.MealAvailability) (*models.MealAvailability, error) {
	if err := r.db.WithContext(ctx).Save(meal).Error; err != nil {
		return nil, err
	}
	return meal, nil
}

func (r *repository) SetActive(ctx context.Context, mealID uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.MealAvailability{}).
		Where("meal_id = ?", mealID).
		Update("active", active).Error
}

func (r *repository) SetRemainingQty(ctx context.Context, mealID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.MealAvailability{}).
		Where("meal_id = ?", mealID).
		Update("remaining_qty", qty).Error
}

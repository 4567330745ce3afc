package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a meal on behalf of a cart item.
type ReservationRequest struct {
	CartItemID uuid.UUID
	MealID     uuid.UUID
	Qty        int
}

// ReservationResult reports the outcome for a single request.
type ReservationResult struct {
	CartItemID uuid.UUID
	MealID     uuid.UUID
	Reserved   bool
	Reason     string
}

// ReserveMeals decrements remaining quantities with conditional updates so two
// concurrent checkouts can never oversell a meal. A request that cannot be
// satisfied is reported in its result; the caller decides whether to abort.
func ReserveMeals(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for meal reservation")
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		res := tx.WithContext(ctx).Exec(`
			UPDATE meal_availability
			SET remaining_qty = remaining_qty - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE meal_id = ? AND active AND remaining_qty >= ?
		`, req.Qty, req.MealID, req.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve meal")
		}

		result := ReservationResult{CartItemID: req.CartItemID, MealID: req.MealID}
		if res.RowsAffected > 0 {
			result.Reserved = true
			results = append(results, result)
			continue
		}

		result.Reason = reservationFailureReason(ctx, tx, req)
		results = append(results, result)
	}
	return results, nil
}

// ReleaseMeal restores previously reserved quantity, e.g. after a
// cancellation. The restore is capped at total_qty so a double release cannot
// overfill the window.
func ReleaseMeal(ctx context.Context, tx *gorm.DB, mealID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for meal release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE meal_availability
		SET remaining_qty = CASE
				WHEN remaining_qty + ? > total_qty THEN total_qty
				ELSE remaining_qty + ?
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE meal_id = ?
	`, qty, qty, mealID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release meal")
	}
	return nil
}

func reservationFailureReason(ctx context.Context, tx *gorm.DB, req ReservationRequest) string {
	var meal models.MealAvailability
	err := tx.WithContext(ctx).
		Where("meal_id = ?", req.MealID).
		First(&meal).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "meal not found"
	case err != nil:
		return "availability check failed"
	case !meal.Active:
		return "meal is no longer offered"
	default:
		return "insufficient remaining quantity"
	}
}

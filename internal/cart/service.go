package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/types"
)

const maxItemQuantity = 25

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MealLoader resolves meal snapshots for cart line items.
type MealLoader interface {
	FindByID(ctx context.Context, mealID uuid.UUID) (*models.MealAvailability, error)
}

// AddItemParams carries the input for adding a meal to a cart.
type AddItemParams struct {
	MealID   uuid.UUID `json:"meal_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// SetDeliveryParams carries the fulfilment mode and, for delivery, the address.
type SetDeliveryParams struct {
	Mode    enums.DeliveryMode     `json:"mode" validate:"required"`
	Address *types.DeliveryAddress `json:"address,omitempty"`
}

// Service exposes cart lifecycle operations.
type Service interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	Get(ctx context.Context, customerID, cartID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, customerID uuid.UUID, params AddItemParams) (*models.CartRecord, error)
	UpdateItemQty(ctx context.Context, customerID, mealID uuid.UUID, quantity int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, customerID, mealID uuid.UUID) (*models.CartRecord, error)
	SetDelivery(ctx context.Context, customerID uuid.UUID, params SetDeliveryParams) (*models.CartRecord, error)
	ApplyPromo(ctx context.Context, customerID uuid.UUID, code string) (*models.CartRecord, error)
	Clear(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
}

type service struct {
	repo   CartRepository
	tx     txRunner
	meals  MealLoader
	cfg    config.CartConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, meals MealLoader, cfg config.CartConfig, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if meals == nil {
		return nil, fmt.Errorf("meal loader required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		meals:  meals,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}, nil
}

// GetOrCreate returns the customer's active cart, creating one when none
// exists. An active cart whose idle window lapsed is marked expired and
// replaced with a fresh cart.
func (s *service) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	record, err := s.activeCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	fresh := &models.CartRecord{
		CustomerID:   customerID,
		Status:       enums.CartStatusActive,
		DeliveryMode: enums.DeliveryModePickup,
		Currency:     enums.CurrencyUSD,
		PromoCodes:   pq.StringArray{},
		ExpiresAt:    s.now().Add(s.cfg.TTL()),
	}
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	s.logger.Info(s.logger.WithCustomerID(ctx, customerID.String()), "cart created")
	return created, nil
}

// Get returns a cart by id scoped to the customer.
func (s *service) Get(ctx context.Context, customerID, cartID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindByIDAndCustomer(ctx, cartID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

// AddItem adds a meal to the active cart, merging quantity when the meal is
// already present. Name and unit price are snapshotted from availability so
// later price changes do not move an existing cart.
func (s *service) AddItem(ctx context.Context, customerID uuid.UUID, params AddItemParams) (*models.CartRecord, error) {
	if params.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if params.Quantity > maxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-item limit").
			WithDetails(map[string]any{"max_quantity": maxItemQuantity})
	}

	meal, err := s.meals.FindByID(ctx, params.MealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "meal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load meal")
	}
	if !meal.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "meal is no longer offered")
	}

	return s.mutate(ctx, customerID, func(record *models.CartRecord) error {
		for i := range record.Items {
			if record.Items[i].MealID == params.MealID {
				next := record.Items[i].Quantity + params.Quantity
				if next > maxItemQuantity {
					return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-item limit").
						WithDetails(map[string]any{"max_quantity": maxItemQuantity})
				}
				record.Items[i].Quantity = next
				return nil
			}
		}
		record.Items = append(record.Items, models.CartItem{
			CartID:         record.ID,
			MealID:         meal.MealID,
			ChefID:         meal.ChefID,
			Name:           meal.Name,
			Quantity:       params.Quantity,
			UnitPriceCents: meal.UnitPriceCents,
		})
		return nil
	})
}

// UpdateItemQty sets the quantity of a cart line. Zero removes the line.
func (s *service) UpdateItemQty(ctx context.Context, customerID, mealID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity > maxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-item limit").
			WithDetails(map[string]any{"max_quantity": maxItemQuantity})
	}

	return s.mutate(ctx, customerID, func(record *models.CartRecord) error {
		for i := range record.Items {
			if record.Items[i].MealID != mealID {
				continue
			}
			if quantity == 0 {
				record.Items = append(record.Items[:i], record.Items[i+1:]...)
			} else {
				record.Items[i].Quantity = quantity
			}
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "meal is not in the cart")
	})
}

// RemoveItem removes a meal from the active cart.
func (s *service) RemoveItem(ctx context.Context, customerID, mealID uuid.UUID) (*models.CartRecord, error) {
	return s.UpdateItemQty(ctx, customerID, mealID, 0)
}

// SetDelivery updates the cart's fulfilment mode. Delivery requires a
// complete address; switching to pickup clears any stored address.
func (s *service) SetDelivery(ctx context.Context, customerID uuid.UUID, params SetDeliveryParams) (*models.CartRecord, error) {
	if !params.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}
	if params.Mode == enums.DeliveryModeDelivery {
		if params.Address == nil || !params.Address.IsComplete() {
			return nil, pkgerrors.New(pkgerrors.CodeIncompleteDeliveryAddress, "a complete delivery address is required")
		}
	}

	return s.mutate(ctx, customerID, func(record *models.CartRecord) error {
		record.DeliveryMode = params.Mode
		if params.Mode == enums.DeliveryModeDelivery {
			record.DeliveryAddress = params.Address
		} else {
			record.DeliveryAddress = nil
		}
		return nil
	})
}

// ApplyPromo attaches a promo code to the cart. Codes are stored verbatim
// and priced at checkout.
func (s *service) ApplyPromo(ctx context.Context, customerID uuid.UUID, code string) (*models.CartRecord, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is required")
	}

	return s.mutate(ctx, customerID, func(record *models.CartRecord) error {
		for _, existing := range record.PromoCodes {
			if existing == code {
				return pkgerrors.New(pkgerrors.CodeConflict, "promo code already applied")
			}
		}
		record.PromoCodes = append(record.PromoCodes, code)
		return nil
	})
}

// Clear empties the cart without discarding it, dropping items and applied
// promos in one pass.
func (s *service) Clear(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	return s.mutate(ctx, customerID, func(record *models.CartRecord) error {
		record.Items = nil
		record.PromoCodes = nil
		return nil
	})
}

// activeCart loads the customer's live cart, expiring a stale one in place.
// Returns (nil, nil) when the customer has no live cart.
func (s *service) activeCart(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if record.ExpiresAt.Before(s.now()) {
		if err := s.repo.UpdateStatus(ctx, record.ID, customerID, enums.CartStatusExpired); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire cart")
		}
		logCtx := s.logger.WithCustomerID(ctx, customerID.String())
		s.logger.Info(s.logger.WithField(logCtx, "cart_id", record.ID.String()), "stale cart expired on access")
		return nil, nil
	}
	return record, nil
}

// mutate applies fn to the active cart and persists the result atomically,
// recomputing line subtotals and refreshing the idle window.
func (s *service) mutate(ctx context.Context, customerID uuid.UUID, fn func(record *models.CartRecord) error) (*models.CartRecord, error) {
	record, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := fn(record); err != nil {
		return nil, err
	}

	recompute(record)
	record.ExpiresAt = s.now().Add(s.cfg.TTL())

	var saved *models.CartRecord
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ReplaceItems(ctx, record.ID, record.Items); err != nil {
			return err
		}
		items := record.Items
		record.Items = nil
		if _, err := txRepo.Update(ctx, record); err != nil {
			record.Items = items
			return err
		}
		record.Items = items

		var err error
		saved, err = txRepo.FindByIDAndCustomer(ctx, record.ID, customerID)
		return err
	}); err != nil {
		var domainErr *pkgerrors.Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}

	return saved, nil
}

// recompute refreshes line subtotals and the cart subtotal from quantities
// and snapshotted unit prices.
func recompute(record *models.CartRecord) {
	var subtotal int64
	for i := range record.Items {
		line := record.Items[i].UnitPriceCents * int64(record.Items[i].Quantity)
		record.Items[i].LineSubtotalCents = line
		subtotal += line
	}
	record.SubtotalCents = subtotal
	if record.PromoCodes == nil {
		record.PromoCodes = pq.StringArray{}
	}
}

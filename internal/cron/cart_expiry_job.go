package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/internal/cart"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/outbox"
	"github.com/platefulhq/plateful-backend/pkg/outbox/payloads"
)

const defaultSweepBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type expiredCartReader interface {
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartRecord, error)
}

type cartExpirer interface {
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

type cartExpirerFactory func(tx *gorm.DB) cartExpirer

func defaultCartExpirer(tx *gorm.DB) cartExpirer {
	return cart.NewRepository(tx)
}

// CartExpiryJobParams configure the idle cart sweeper.
type CartExpiryJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Carts          expiredCartReader
	Outbox         outboxEmitter
	ExpirerFactory cartExpirerFactory
	BatchSize      int
}

// NewCartExpiryJob builds the job that expires idle carts and announces each
// expiry through the outbox.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	factory := params.ExpirerFactory
	if factory == nil {
		factory = defaultCartExpirer
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &cartExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		carts:     params.Carts,
		outbox:    params.Outbox,
		factory:   factory,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	carts     expiredCartReader
	outbox    outboxEmitter
	factory   cartExpirerFactory
	batchSize int
	now       func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

// Run sweeps one batch of lapsed carts. A cart that fails keeps the sweep
// going; its error surfaces in the combined result and the next cycle picks
// it up again.
func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	rows, err := j.carts.FindExpired(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired carts: %w", err)
	}

	var errs []error
	expired := 0
	for _, record := range rows {
		if err := j.expireCart(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("expire cart %s: %w", record.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *cartExpiryJob) expireCart(ctx context.Context, record models.CartRecord) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := j.factory(tx).MarkExpired(ctx, record.ID)
		if err != nil {
			return err
		}
		// A checkout converted the cart between the scan and this write.
		if !moved {
			return nil
		}

		now := j.now().UTC()
		event := outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.OutboxAggregateCart,
			AggregateID:   record.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CartExpiredEvent{
				CartID:     record.ID,
				CustomerID: record.CustomerID,
				ExpiredAt:  now,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}

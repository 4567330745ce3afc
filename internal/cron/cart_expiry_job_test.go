package cron

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/outbox"
	"github.com/platefulhq/plateful-backend/pkg/outbox/payloads"
)

func TestCartExpiryJobExpiresAndEmits(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	record := models.CartRecord{ID: uuid.New(), CustomerID: uuid.New(), Status: enums.CartStatusActive}

	reader := &fakeExpiredReader{rows: []models.CartRecord{record}}
	expirer := &fakeExpirer{moved: map[uuid.UUID]bool{record.ID: true}}
	events := &captureEmitter{}
	job := newCartExpiryJobForTest(t, reader, expirer, events)
	job.(*cartExpiryJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	event := events.events[0]
	if event.EventType != enums.EventCartExpired {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.CartExpiredEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", event.Data)
	}
	if payload.CartID != record.ID || payload.CustomerID != record.CustomerID {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !payload.ExpiredAt.Equal(now) {
		t.Fatalf("unexpected expiry time %s", payload.ExpiredAt)
	}
}

func TestCartExpiryJobSkipsConvertedCart(t *testing.T) {
	t.Parallel()

	record := models.CartRecord{ID: uuid.New(), CustomerID: uuid.New(), Status: enums.CartStatusActive}
	reader := &fakeExpiredReader{rows: []models.CartRecord{record}}
	expirer := &fakeExpirer{moved: map[uuid.UUID]bool{}}
	events := &captureEmitter{}
	job := newCartExpiryJobForTest(t, reader, expirer, events)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no events for a converted cart, got %d", len(events.events))
	}
}

func TestCartExpiryJobContinuesPastFailures(t *testing.T) {
	t.Parallel()

	bad := models.CartRecord{ID: uuid.New(), CustomerID: uuid.New()}
	good := models.CartRecord{ID: uuid.New(), CustomerID: uuid.New()}
	reader := &fakeExpiredReader{rows: []models.CartRecord{bad, good}}
	expirer := &fakeExpirer{
		moved: map[uuid.UUID]bool{good.ID: true},
		errs:  map[uuid.UUID]error{bad.ID: fmt.Errorf("deadlock")},
	}
	events := &captureEmitter{}
	job := newCartExpiryJobForTest(t, reader, expirer, events)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error from the failing cart")
	}
	if len(events.events) != 1 {
		t.Fatalf("expected the healthy cart to still expire, got %d events", len(events.events))
	}
}

func newCartExpiryJobForTest(t *testing.T, reader *fakeExpiredReader, expirer *fakeExpirer, events *captureEmitter) Job {
	t.Helper()
	log := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	job, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger: log,
		DB:     stubTxRunner{},
		Carts:  reader,
		Outbox: events,
		ExpirerFactory: func(tx *gorm.DB) cartExpirer {
			return expirer
		},
	})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	return job
}

type fakeExpiredReader struct {
	rows []models.CartRecord
}

func (f *fakeExpiredReader) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CartRecord, error) {
	return f.rows, nil
}

type fakeExpirer struct {
	moved map[uuid.UUID]bool
	errs  map[uuid.UUID]error
}

func (f *fakeExpirer) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	if err, ok := f.errs[id]; ok {
		return false, err
	}
	return f.moved[id], nil
}

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (c *captureEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

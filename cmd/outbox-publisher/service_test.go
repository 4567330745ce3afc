package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (r *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if limit < len(r.events) {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *fakeRepo) MarkPublished(id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	idx := len(p.messages) - 1
	if idx < len(p.results) {
		return p.results[idx]
	}
	return fakePublishResult{}
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-id", nil
}

func testService(t *testing.T, repo outboxRepository, pub publisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"orderId": uuid.NewString()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestProcessBatchMarksPublishedRows(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		outboxRow(t, enums.EventOrderCreated),
		outboxRow(t, enums.EventPaymentSucceeded),
	}}
	pub := &fakePublisher{}
	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report work")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published rows, got %d", len(repo.published))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %d", len(repo.failed))
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := outboxRow(t, enums.EventOrderCreated)
	second := outboxRow(t, enums.EventOrderCreated)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report work")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("first event should be marked failed")
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("second event should be marked published")
	}
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	svc := testService(t, &fakeRepo{}, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatalf("empty fetch should report idle")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := time.Duration(defaultPollMs) * time.Millisecond
	backoff := base
	for i := 0; i < 10; i++ {
		backoff = nextBackoff(backoff, base, maxBackoff)
	}
	if backoff != maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", maxBackoff, backoff)
	}
}

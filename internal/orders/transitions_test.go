package orders

import (
	"testing"
	"time"

	"github.com/platefulhq/plateful-backend/pkg/db/models"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed}:        true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}:        true,
		{enums.OrderStatusConfirmed, enums.OrderStatusPreparing}:      true,
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}:      true,
		{enums.OrderStatusPreparing, enums.OrderStatusReady}:          true,
		{enums.OrderStatusPreparing, enums.OrderStatusCancelled}:      true,
		{enums.OrderStatusReady, enums.OrderStatusOutForDelivery}:     true,
		{enums.OrderStatusReady, enums.OrderStatusDelivered}:          true,
		{enums.OrderStatusReady, enums.OrderStatusCancelled}:          true,
		{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered}: true,
		{enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled}: true,
	}

	statuses := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := from == to || allowed[[2]enums.OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestApplyTransitionStampsTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Now()
	order := models.Order{Status: enums.OrderStatusPending}

	next, err := ApplyTransition(order, enums.OrderStatusConfirmed, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", next.Status)
	}
	if next.ConfirmedAt == nil || !next.ConfirmedAt.Equal(now) {
		t.Fatalf("expected confirmed_at stamped, got %v", next.ConfirmedAt)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatal("input order must not be mutated")
	}
}

func TestApplyTransitionSelfIsNoOp(t *testing.T) {
	t.Parallel()

	stamp := time.Now().Add(-time.Hour)
	order := models.Order{Status: enums.OrderStatusConfirmed, ConfirmedAt: &stamp}

	next, err := ApplyTransition(order, enums.OrderStatusConfirmed, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ConfirmedAt == nil || !next.ConfirmedAt.Equal(stamp) {
		t.Fatal("self-transition must not overwrite the original timestamp")
	}
}

func TestApplyTransitionRejectsIllegalMove(t *testing.T) {
	t.Parallel()

	order := models.Order{Status: enums.OrderStatusDelivered}

	_, err := ApplyTransition(order, enums.OrderStatusPreparing, time.Now())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyTransitionRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	order := models.Order{Status: enums.OrderStatusPending}

	_, err := ApplyTransition(order, enums.OrderStatus("shipped"), time.Now())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

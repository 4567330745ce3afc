package square

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platefulhq/plateful-backend/internal/payments"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

// Event types Square delivers for the payments scope.
const (
	EventTypePaymentCreated = "payment.created"
	EventTypePaymentUpdated = "payment.updated"
	EventTypeRefundUpdated  = "refund.updated"
)

type paymentEventHandler interface {
	HandleGatewayEvent(ctx context.Context, event payments.GatewayEvent) error
}

type envelope struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	Data       struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"payment"`
			Refund struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Status    string `json:"status"`
			} `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

// Service deduplicates and dispatches Square webhook deliveries.
type Service struct {
	handler paymentEventHandler
	guard   *Guard
	logger  *logger.Logger
}

// NewService wires the webhook dispatcher.
func NewService(handler paymentEventHandler, guard *Guard, log *logger.Logger) (*Service, error) {
	if handler == nil {
		return nil, fmt.Errorf("payment event handler required")
	}
	if guard == nil {
		return nil, fmt.Errorf("webhook guard required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{handler: handler, guard: guard, logger: log}, nil
}

// Process parses a verified webhook body and applies it exactly once. A
// handler failure releases the dedupe marker so Square's redelivery gets
// another chance.
func (s *Service) Process(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook payload")
	}
	if env.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id missing")
	}

	first, err := s.guard.CheckAndMark(ctx, env.EventID)
	if err != nil {
		return err
	}
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"event_id":   env.EventID,
		"event_type": env.Type,
	})
	if !first {
		s.logger.Info(logCtx, "duplicate webhook delivery skipped")
		return nil
	}

	event, ok := s.toGatewayEvent(env)
	if !ok {
		s.logger.Info(logCtx, "unhandled webhook event type")
		return nil
	}

	if err := s.handler.HandleGatewayEvent(ctx, event); err != nil {
		if releaseErr := s.guard.Release(ctx, env.EventID); releaseErr != nil {
			s.logger.Error(logCtx, "failed to release webhook event", releaseErr)
		}
		return err
	}
	s.logger.Info(logCtx, "webhook event applied")
	return nil
}

func (s *Service) toGatewayEvent(env envelope) (payments.GatewayEvent, bool) {
	switch env.Type {
	case EventTypePaymentCreated, EventTypePaymentUpdated:
		payment := env.Data.Object.Payment
		if payment.ID == "" {
			return payments.GatewayEvent{}, false
		}
		return payments.GatewayEvent{
			EventID:    env.EventID,
			Type:       env.Type,
			PaymentRef: payment.ID,
			Status:     payment.Status,
		}, true
	default:
		return payments.GatewayEvent{}, false
	}
}

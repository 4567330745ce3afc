package payments

import (
	"context"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/square"
)

// Gateway payment states as reported by Square.
const (
	GatewayStatusApproved  = "APPROVED"
	GatewayStatusPending   = "PENDING"
	GatewayStatusCompleted = "COMPLETED"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusCanceled  = "CANCELED"
)

// GatewayPayment is the gateway-side view of a payment.
type GatewayPayment struct {
	Reference   string
	Status      string
	AmountCents int64
	Currency    string
}

// Settled reports whether the gateway has captured the funds.
func (p *GatewayPayment) Settled() bool {
	return p != nil && p.Status == GatewayStatusCompleted
}

// GatewayRefund is the gateway-side view of a refund.
type GatewayRefund struct {
	Reference   string
	Status      string
	AmountCents int64
}

// AuthorizeParams describes a payment authorization against an order.
type AuthorizeParams struct {
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	SourceID       string
	AmountCents    int64
	Currency       enums.Currency
	IdempotencyKey string
}

// RefundParams describes a full or partial refund of a captured payment.
type RefundParams struct {
	PaymentRef     string
	AmountCents    int64
	Currency       enums.Currency
	Reason         string
	IdempotencyKey string
}

// Gateway abstracts the payment processor so the reconciliation service can
// be exercised without network calls.
type Gateway interface {
	Authorize(ctx context.Context, params AuthorizeParams) (*GatewayPayment, error)
	Capture(ctx context.Context, reference string) (*GatewayPayment, error)
	Fetch(ctx context.Context, reference string) (*GatewayPayment, error)
	Refund(ctx context.Context, params RefundParams) (*GatewayRefund, error)
}

type squareGateway struct {
	client *square.Client
}

// NewSquareGateway adapts the Square client to the Gateway interface.
func NewSquareGateway(client *square.Client) Gateway {
	return &squareGateway{client: client}
}

func (g *squareGateway) Authorize(ctx context.Context, params AuthorizeParams) (*GatewayPayment, error) {
	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    params.AmountCents,
		Currency:       params.Currency.String(),
		LocationID:     g.client.LocationID(),
		CustomerID:     params.CustomerID.String(),
		SourceID:       params.SourceID,
		IdempotencyKey: params.IdempotencyKey,
		ReferenceID:    params.OrderID.String(),
	})
	if err != nil {
		return nil, err
	}
	return toGatewayPayment(payment), nil
}

func (g *squareGateway) Capture(ctx context.Context, reference string) (*GatewayPayment, error) {
	payment, err := g.client.CompletePayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	return toGatewayPayment(payment), nil
}

func (g *squareGateway) Fetch(ctx context.Context, reference string) (*GatewayPayment, error) {
	payment, err := g.client.GetPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	return toGatewayPayment(payment), nil
}

func (g *squareGateway) Refund(ctx context.Context, params RefundParams) (*GatewayRefund, error) {
	refund, err := g.client.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      params.PaymentRef,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency.String(),
		Reason:         params.Reason,
		IdempotencyKey: params.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return toGatewayRefund(refund), nil
}

func toGatewayPayment(payment *sq.Payment) *GatewayPayment {
	if payment == nil {
		return nil
	}
	out := &GatewayPayment{
		Reference: derefString(payment.GetID()),
		Status:    derefString(payment.GetStatus()),
	}
	if money := payment.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.AmountCents = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			out.Currency = string(*currency)
		}
	}
	return out
}

func toGatewayRefund(refund *sq.PaymentRefund) *GatewayRefund {
	if refund == nil {
		return nil
	}
	out := &GatewayRefund{
		Reference: refund.GetID(),
		Status:    derefString(refund.GetStatus()),
	}
	if money := refund.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.AmountCents = *amount
		}
	}
	return out
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

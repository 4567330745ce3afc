package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/platefulhq/plateful-backend/api/responses"
	squarewebhook "github.com/platefulhq/plateful-backend/internal/webhooks/square"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type eventProcessor interface {
	Process(ctx context.Context, body []byte) error
}

type squareClient interface {
	SigningSecret() string
	NotificationURL() string
}

// Square verifies the gateway signature and hands the raw payload to the
// webhook service. Dedup and dispatch happen there.
func Square(svc eventProcessor, client squareClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(squarewebhook.SignatureHeader)
		if err := squarewebhook.VerifySignature(client.SigningSecret(), client.NotificationURL(), payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Process(ctx, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

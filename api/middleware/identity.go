package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/api/responses"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

const (
	customerIDHeader = "X-Customer-Id"
	chefIDHeader     = "X-Chef-Id"
)

// CustomerContext requires the gateway-issued customer header and injects it
// into the request context. Requests without a parseable customer id are
// rejected before reaching any handler.
func CustomerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(customerIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
				return
			}

			ctx := WithCustomerID(r.Context(), raw)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, raw)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ChefContext reads the optional chef header for kitchen-side endpoints.
func ChefContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(chefIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chef id"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithChefID(r.Context(), raw)))
		})
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/platefulhq/plateful-backend/api/controllers"
	cartcontrollers "github.com/platefulhq/plateful-backend/api/controllers/cart"
	checkoutcontrollers "github.com/platefulhq/plateful-backend/api/controllers/checkout"
	ordercontrollers "github.com/platefulhq/plateful-backend/api/controllers/orders"
	paymentcontrollers "github.com/platefulhq/plateful-backend/api/controllers/payments"
	webhookcontrollers "github.com/platefulhq/plateful-backend/api/controllers/webhooks"
	"github.com/platefulhq/plateful-backend/api/middleware"
	cartsvc "github.com/platefulhq/plateful-backend/internal/cart"
	checkoutsvc "github.com/platefulhq/plateful-backend/internal/checkout"
	orderssvc "github.com/platefulhq/plateful-backend/internal/orders"
	paymentssvc "github.com/platefulhq/plateful-backend/internal/payments"
	squarewebhook "github.com/platefulhq/plateful-backend/internal/webhooks/square"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/db"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	squareClient *square.Client,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	ordersService orderssvc.Service,
	paymentsService paymentssvc.Service,
	webhookService *squarewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.Square(webhookService, squareClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CustomerContext(logg))
		r.Use(middleware.ChefContext(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Get(cartService, logg))
			r.Delete("/", cartcontrollers.Clear(cartService, logg))
			r.Post("/items", cartcontrollers.AddItem(cartService, logg))
			r.Patch("/items/{itemId}", cartcontrollers.UpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(cartService, logg))
			r.Put("/delivery", cartcontrollers.SetDelivery(cartService, logg))
			r.Post("/promo", cartcontrollers.ApplyPromo(cartService, logg))
		})

		r.Post("/checkout", checkoutcontrollers.Execute(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/transition", ordercontrollers.Transition(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Post("/{orderId}/payment-intent", paymentcontrollers.CreateIntent(paymentsService, logg))
			r.Post("/{orderId}/payment-retry", paymentcontrollers.Retry(paymentsService, logg))
			r.Post("/{orderId}/refund", paymentcontrollers.Refund(paymentsService, logg))
			r.Get("/{orderId}/payments", paymentcontrollers.Ledger(paymentsService, logg))
		})

		r.Post("/payments/confirm", paymentcontrollers.Confirm(paymentsService, logg))
	})

	return r
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func NewRouter(cart *CartHandler, checkout *CheckoutHandler, address *AddressHandler, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ClearCart)
			r.Put("/open", cart.SetOpen)
			r.Post("/items", cart.AddItem)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkout.Open)
			r.Get("/", checkout.Get)
			r.Put("/", checkout.Update)
			r.Get("/totals", checkout.Totals)
			r.Post("/submit", checkout.Submit)
		})

		r.Get("/address/{cep}", address.Lookup)
	})

	return otelhttp.NewHandler(r, "storefront")
}

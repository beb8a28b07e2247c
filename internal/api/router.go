package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Skrewild/shop/internal/api/handlers"
	"github.com/Skrewild/shop/internal/metrics"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Product *handlers.ProductHandler
	Cart    *handlers.CartHandler
	Order   *handlers.OrderHandler
	Admin   *handlers.AdminHandler
	Upload  *handlers.UploadHandler
}

// NewRouter wires the HTTP surface. Admin routes sit behind the shared
// secret guard; everything else is public.
func NewRouter(h Handlers, m *metrics.ServerMetrics, uploadDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/auth/register", h.Auth.Register)
	r.Post("/auth/login", h.Auth.Login)
	r.Get("/auth/me", h.Auth.Me)

	r.Get("/products", h.Product.GetAll)

	r.Get("/cart", h.Cart.Get)
	r.Post("/cart", h.Cart.Add)
	r.Delete("/cart/{id}", h.Cart.Remove)
	r.Post("/cart/confirm", h.Order.ConfirmSingle)

	r.Get("/orders", h.Order.GetOrders)
	r.Post("/orders/confirm", h.Order.SubmitCart)
	r.Post("/orders/cancel", h.Order.Cancel)

	r.Post("/upload", h.Upload.Upload)
	if uploadDir != "" {
		fs := http.StripPrefix("/products/images/", http.FileServer(http.Dir(uploadDir)))
		r.Get("/products/images/*", fs.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.Admin.RequireAdmin)

		r.Post("/products/add", h.Admin.AddProduct)
		r.Put("/products/{id}", h.Admin.UpdateProduct)
		r.Delete("/products/{id}", h.Admin.DeleteProduct)

		r.Get("/admin/orders", h.Admin.GetOrders)
		r.Get("/admin/orders/waiting", h.Admin.GetWaiting)
		r.Post("/admin/orders/confirm/{id}", h.Admin.ConfirmOrder)
	})

	return r
}

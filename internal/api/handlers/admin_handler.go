package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Skrewild/shop/internal/auth"
	"github.com/Skrewild/shop/internal/models"
	"github.com/Skrewild/shop/internal/repository"
)

const adminSecretHeader = "x-admin-secret"

// AdminWorkflow is the admin side of the confirmation state machine.
type AdminWorkflow interface {
	ApproveItem(ctx context.Context, id int64) error
}

type AdminHandler struct {
	guard    *auth.AdminGuard
	products repository.ProductRepository
	orders   repository.OrderRepository
	workflow AdminWorkflow
}

func NewAdminHandler(guard *auth.AdminGuard, products repository.ProductRepository, orders repository.OrderRepository, workflow AdminWorkflow) *AdminHandler {
	return &AdminHandler{guard: guard, products: products, orders: orders, workflow: workflow}
}

// RequireAdmin rejects any request whose shared secret does not match.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.guard.Allow(r.Header.Get(adminSecretHeader)) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type productRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
	Stock    int     `json:"stock"`
}

func (h *AdminHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p := models.Product{
		Name:     req.Name,
		Price:    req.Price,
		Location: req.Location,
		Stock:    req.Stock,
	}

	if err := h.products.Create(r.Context(), &p); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": p.ID})
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p := models.Product{
		ID:       id,
		Name:     req.Name,
		Price:    req.Price,
		Location: req.Location,
		Stock:    req.Stock,
	}

	if err := h.products.Update(r.Context(), &p); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update product")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.products.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.orders.GetAllOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get orders")
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) GetWaiting(w http.ResponseWriter, r *http.Request) {
	lines, err := h.orders.GetWaiting(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get waiting orders")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

// ConfirmOrder is the admin approval of one waiting line item.
func (h *AdminHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order item id")
		return
	}

	if err := h.workflow.ApproveItem(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found or already processed")
		case errors.Is(err, repository.ErrOutOfStock):
			writeError(w, http.StatusBadRequest, "run out of this product")
		default:
			writeError(w, http.StatusInternalServerError, "failed to confirm order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

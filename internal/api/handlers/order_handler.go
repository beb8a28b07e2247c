package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Skrewild/shop/internal/repository"
)

// OrderWorkflow is the confirmation state machine as the HTTP layer
// sees it.
type OrderWorkflow interface {
	ConfirmItem(ctx context.Context, id int64) error
	SubmitCart(ctx context.Context, email string) (int64, error)
	CancelItem(ctx context.Context, id int64, email string) error
}

type OrderHandler struct {
	workflow OrderWorkflow
	cart     repository.CartRepository
}

func NewOrderHandler(workflow OrderWorkflow, cart repository.CartRepository) *OrderHandler {
	return &OrderHandler{workflow: workflow, cart: cart}
}

type confirmItemRequest struct {
	ItemID int64 `json:"item_id"`
}

type submitCartRequest struct {
	Email string `json:"email"`
}

type cancelRequest struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// ConfirmSingle submits one cart line for admin approval.
func (h *OrderHandler) ConfirmSingle(w http.ResponseWriter, r *http.Request) {
	var req confirmItemRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	if req.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "item_id required")
		return
	}

	err := h.workflow.ConfirmItem(r.Context(), req.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "item not found")
		case errors.Is(err, repository.ErrOutOfStock):
			writeError(w, http.StatusBadRequest, "run out of this product")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to confirm item")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SubmitCart confirms the whole cart; all lines pass the stock check or
// none are transitioned.
func (h *OrderHandler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	var req submitCartRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	orderID, err := h.workflow.SubmitCart(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, repository.ErrInsufficientStock):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusForbidden, "user not found")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to confirm order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "orderId": orderID})
}

func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	lines, err := h.cart.GetOrders(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get orders")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	if req.ID <= 0 || req.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email required")
		return
	}

	err := h.workflow.CancelItem(r.Context(), req.ID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found or already processed")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

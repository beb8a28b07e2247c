package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Skrewild/shop/internal/repository"
)

type CartHandler struct {
	repo repository.CartRepository
}

func NewCartHandler(repo repository.CartRepository) *CartHandler {
	return &CartHandler{repo: repo}
}

type addToCartRequest struct {
	ItemID int    `json:"item_id"`
	Email  string `json:"email"`
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	lines, err := h.repo.GetCart(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get cart")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	if req.ItemID == 0 || req.Email == "" {
		writeError(w, http.StatusBadRequest, "item_id and email required")
		return
	}

	_, err := h.repo.Add(r.Context(), req.Email, req.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusForbidden, "user not found")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add to cart")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Remove is idempotent: deleting an id that is gone already is still a
// success.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}

	if err := h.repo.Remove(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove cart item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

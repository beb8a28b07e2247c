package handlers

import (
	"net/http"

	"github.com/Skrewild/shop/internal/repository"
)

type ProductHandler struct {
	repo repository.ProductRepository
}

func NewProductHandler(repo repository.ProductRepository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

// GetAll serves the public catalog: available, not soft-deleted.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.GetAvailable(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

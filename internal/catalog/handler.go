package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	logger  *slog.Logger
	store   *Store
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store *Store, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, service: service}
}

// MountRoutes registers storefront catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getCatalog)
	r.Post("/refresh", h.refresh)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/featured", h.featured)
	r.Get("/suggest", h.suggest)
}

// MountAdminRoutes registers admin catalog mutation routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/products", h.addProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Post("/categories", h.addCategory)
	r.Put("/categories/{id}", h.updateCategory)
	r.Delete("/categories/{id}", h.deleteCategory)
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Load(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.store.View())
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Refresh(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.store.View())
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	products := Browse(snap, Query{
		Category:          q.Get("category"),
		Search:            q.Get("q"),
		Sort:              ParseSortKey(q.Get("sort")),
		IncludeOutOfStock: q.Get("all") == "true",
		Limit:             limit,
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "total": len(products)})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	p, ok := snap.Product(id)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: %s", ErrProductNotFound, id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) featured(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpx.JSON(w, http.StatusOK, Featured(snap, limit))
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Suggest(snap, r.URL.Query().Get("q"), DefaultSuggestLimit))
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.AddProduct(r.Context(), in)
	if err != nil {
		h.logger.Warn("add product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch ProductPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.logger.Warn("update product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("delete product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.AddCategory(r.Context(), in)
	if err != nil {
		h.logger.Warn("add category", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.logger.Warn("update category", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("delete category", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package cart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// Catalog supplies product values to the cart.
type Catalog interface {
	Load(ctx context.Context) (*catalog.Snapshot, error)
}

// Handler exposes carts and checkout over HTTP.
type Handler struct {
	logger  *slog.Logger
	book    *Book
	catalog Catalog
	methods []PaymentMethod
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, book *Book, cat Catalog, methods []PaymentMethod) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, book: book, catalog: cat, methods: methods}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.openCart)
	r.Route("/{cartID}", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.discardCart)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.setQuantity)
		r.Delete("/items/{productID}", h.removeItem)
		r.Post("/checkout", h.checkout)
	})
}

// PaymentMethodsHandler lists checkout payment options.
func (h *Handler) PaymentMethodsHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.methods)
}

type cartView struct {
	ID    string          `json:"cartId"`
	Lines []Line          `json:"lines"`
	Units int             `json:"units"`
	Total decimal.Decimal `json:"total"`
}

func viewOf(id string, l *Ledger) cartView {
	return cartView{ID: id, Lines: l.Lines(), Units: l.Units(), Total: l.Total()}
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) (string, *Ledger, bool) {
	id := chi.URLParam(r, "cartID")
	l, err := h.book.Get(id)
	if err != nil {
		httpx.RespondError(w, err)
		return "", nil, false
	}
	return id, l, true
}

func (h *Handler) openCart(w http.ResponseWriter, _ *http.Request) {
	id, l := h.book.Open()
	httpx.JSON(w, http.StatusCreated, viewOf(id, l))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(id, l))
}

func (h *Handler) discardCart(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.ledger(w, r)
	if !ok {
		return
	}
	h.book.Discard(id)
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := h.catalog.Load(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, found := snap.Product(req.ProductID)
	if !found {
		httpx.RespondError(w, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, req.ProductID))
		return
	}
	l.Add(p, req.Quantity)
	httpx.JSON(w, http.StatusOK, viewOf(id, l))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	l.SetQuantity(chi.URLParam(r, "productID"), req.Quantity)
	httpx.JSON(w, http.StatusOK, viewOf(id, l))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	l.Remove(chi.URLParam(r, "productID"))
	httpx.JSON(w, http.StatusOK, viewOf(id, l))
}

type checkoutRequest struct {
	ShippingInfo
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id, l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	method, found := FindPaymentMethod(h.methods, req.PaymentMethod)
	if !found {
		httpx.RespondError(w, fmt.Errorf("%w: unknown payment method %q", httpx.ErrValidation, req.PaymentMethod))
		return
	}
	receipt, err := l.Submit(r.Context(), req.ShippingInfo, method)
	if err != nil {
		h.logger.Warn("checkout", slog.String("cart_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("order placed", slog.String("cart_id", id), slog.String("order_id", receipt.OrderID), slog.String("total", receipt.Total.String()))
	httpx.JSON(w, http.StatusCreated, receipt)
}

// AdminHandler exposes back-office order and customer operations.
type AdminHandler struct {
	logger *slog.Logger
	orders OrderAdmin
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(logger *slog.Logger, orders OrderAdmin) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{logger: logger, orders: orders}
}

// MountRoutes registers back-office order routes.
func (h *AdminHandler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Get("/customers", h.listCustomers)
	r.Delete("/customers/{id}", h.deleteCustomer)
}

func listFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return ListFilter{Page: page, Limit: limit, Status: q.Get("status"), Search: q.Get("search")}
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), listFilter(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := ParseOrderStatus(req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.orders.UpdateOrderStatus(r.Context(), id, status); err != nil {
		h.logger.Warn("update order status", slog.String("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (h *AdminHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		h.logger.Warn("delete order", slog.String("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.orders.ListCustomers(r.Context(), listFilter(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *AdminHandler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orders.DeleteCustomer(r.Context(), id); err != nil {
		h.logger.Warn("delete customer", slog.String("customer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

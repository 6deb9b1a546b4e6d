package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// Line is one product in the cart. Quantity stays within [1, Product.Stock].
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingInfo is collected at checkout.
type ShippingInfo struct {
	Address string `json:"shippingAddress" validate:"required,max=500"`
	Phone   string `json:"phoneNumber" validate:"required,max=20"`
	Notes   string `json:"notes,omitempty" validate:"max=1000"`
}

func (s ShippingInfo) trimmed() ShippingInfo {
	return ShippingInfo{
		Address: strings.TrimSpace(s.Address),
		Phone:   strings.TrimSpace(s.Phone),
		Notes:   strings.TrimSpace(s.Notes),
	}
}

// PaymentType classifies payment methods.
type PaymentType string

// Supported payment types.
const (
	PaymentBankTransfer PaymentType = "bank_transfer"
	PaymentCOD          PaymentType = "cod"
)

// PaymentMethod is a checkout payment option.
type PaymentMethod struct {
	ID            string      `json:"id" validate:"required"`
	Name          string      `json:"name"`
	Type          PaymentType `json:"type" validate:"oneof=bank_transfer cod"`
	Icon          string      `json:"icon"`
	BankCode      string      `json:"bankCode,omitempty"`
	AccountNumber string      `json:"accountNumber,omitempty"`
	AccountName   string      `json:"accountName,omitempty"`
}

// OrderItem is a submitted cart line.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderPayload is sent to the order gateway on checkout.
type OrderPayload struct {
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress string          `json:"shippingAddress"`
	PhoneNumber     string          `json:"phoneNumber"`
	Notes           string          `json:"notes,omitempty"`
}

// Confirmation is the gateway's acknowledgement of a created order.
type Confirmation struct {
	OrderID       string          `json:"orderId"`
	OrderCode     string          `json:"orderCode"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// BankTransfer tells the customer where to send a bank transfer.
type BankTransfer struct {
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	AccountName   string          `json:"accountName"`
	Amount        decimal.Decimal `json:"amount"`
	Content       string          `json:"content"`
}

// Receipt is returned to the shopper after a successful checkout.
type Receipt struct {
	OrderID       string          `json:"orderId"`
	OrderCode     string          `json:"orderCode"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	BankTransfer  *BankTransfer   `json:"bankTransfer,omitempty"`
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// Order statuses.
const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ParseOrderStatus validates a status value.
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", httpx.ErrValidation, v)
	}
	return s, nil
}

// Order is an order as listed by the back office.
type Order struct {
	ID            string          `json:"id"`
	Code          string          `json:"orderCode,omitempty"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Items         []OrderItem     `json:"items"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Customer is a shopper as listed by the back office.
type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Address    string          `json:"address"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	Orders     int             `json:"orders"`
	Status     string          `json:"status"`
}

// ListFilter pages and filters back-office listings.
type ListFilter struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// OrderGateway creates orders upstream.
type OrderGateway interface {
	CreateOrder(ctx context.Context, payload OrderPayload) (Confirmation, error)
}

// OrderAdmin is the back-office side of the order gateway.
type OrderAdmin interface {
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) error
	DeleteOrder(ctx context.Context, id string) error
	ListCustomers(ctx context.Context, filter ListFilter) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

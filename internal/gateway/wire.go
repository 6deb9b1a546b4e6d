package gateway

import (
	"github.com/odyssey-erp/odyssey-storefront/internal/cart"
	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
)

type confirmationWire struct {
	OrderID       catalog.OptString `json:"orderId"`
	ID            catalog.OptString `json:"id"`
	LegacyID      catalog.OptString `json:"_id"`
	OrderCode     string            `json:"orderCode"`
	TotalAmount   catalog.OptNumber `json:"totalAmount"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"paymentMethod"`
	CreatedAt     string            `json:"createdAt"`
}

func firstSet(vals ...catalog.OptString) string {
	for _, v := range vals {
		if v.Set {
			return v.Value
		}
	}
	return ""
}

func (w confirmationWire) confirmation() cart.Confirmation {
	return cart.Confirmation{
		OrderID:       firstSet(w.OrderID, w.ID, w.LegacyID),
		OrderCode:     w.OrderCode,
		TotalAmount:   w.TotalAmount.Value,
		Status:        cart.OrderStatus(w.Status),
		PaymentMethod: w.PaymentMethod,
		CreatedAt:     parseTime(w.CreatedAt),
	}
}

type orderItemWire struct {
	ProductID   catalog.OptString `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    catalog.OptInt    `json:"quantity"`
	Price       catalog.OptNumber `json:"price"`
}

type orderWire struct {
	ID            catalog.OptString `json:"id"`
	LegacyID      catalog.OptString `json:"_id"`
	OrderCode     string            `json:"orderCode"`
	CustomerName  string            `json:"customerName"`
	UserFullname  string            `json:"userFullname"`
	CustomerEmail string            `json:"customerEmail"`
	UserEmail     string            `json:"userEmail"`
	TotalAmount   catalog.OptNumber `json:"totalAmount"`
	Items         []orderItemWire   `json:"items"`
	Status        string            `json:"status"`
	CreatedAt     string            `json:"createdAt"`
}

func (w orderWire) order() cart.Order {
	o := cart.Order{
		ID:            firstSet(w.ID, w.LegacyID),
		Code:          w.OrderCode,
		CustomerName:  w.CustomerName,
		CustomerEmail: w.CustomerEmail,
		TotalAmount:   w.TotalAmount.Value,
		Items:         make([]cart.OrderItem, 0, len(w.Items)),
		Status:        cart.OrderStatus(w.Status),
		CreatedAt:     parseTime(w.CreatedAt),
	}
	if o.CustomerName == "" {
		o.CustomerName = w.UserFullname
	}
	if o.CustomerEmail == "" {
		o.CustomerEmail = w.UserEmail
	}
	for _, it := range w.Items {
		o.Items = append(o.Items, cart.OrderItem{
			ProductID:   it.ProductID.Value,
			ProductName: it.ProductName,
			Quantity:    it.Quantity.Value,
			Price:       it.Price.Value,
		})
	}
	return o
}

type customerWire struct {
	ID         catalog.OptString `json:"id"`
	LegacyID   catalog.OptString `json:"_id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Address    string            `json:"address"`
	TotalSpent catalog.OptNumber `json:"totalSpent"`
	Orders     catalog.OptInt    `json:"orders"`
	Status     string            `json:"status"`
}

func (w customerWire) customer() cart.Customer {
	return cart.Customer{
		ID:         firstSet(w.ID, w.LegacyID),
		Name:       w.Name,
		Email:      w.Email,
		Phone:      w.Phone,
		Address:    w.Address,
		TotalSpent: w.TotalSpent.Value,
		Orders:     w.Orders.Value,
		Status:     w.Status,
	}
}

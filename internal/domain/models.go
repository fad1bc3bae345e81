package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар каталога магазина
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	Stock       int             `json:"stock"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
}

// PrimaryImage первая картинка товара или пустая строка
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CartLineItem позиция корзины: товар + размер + цвет + количество.
// Пустые SelectedSize/SelectedColor означают "не выбрано" и в JSON пишутся как null,
// так же как в сохранённой корзине.
type CartLineItem struct {
	ProductID      int64           `json:"productId"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image"`
	SelectedSize   string          `json:"selectedSize"`
	SelectedColor  string          `json:"selectedColor"`
	Quantity       int             `json:"quantity"`
	AvailableStock int             `json:"stock"`
}

// LineTotal цена позиции с учётом количества
func (it CartLineItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CustomerInfo данные покупателя, сохраняемые в заказе
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem снимок позиции корзины на момент оформления
type OrderItem struct {
	ProductID     int64           `json:"productId"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image"`
	SelectedSize  string          `json:"selectedSize"`
	SelectedColor string          `json:"selectedColor"`
	Quantity      int             `json:"quantity"`
}

// Order сущность заказа
type Order struct {
	ID        int64           `json:"id"`
	Items     []OrderItem     `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Customer  CustomerInfo    `json:"customerInfo"`
	OrderDate time.Time       `json:"orderDate"`
	Status    OrderStatus     `json:"status"`
}

// SnapshotItems копирует позиции корзины в позиции заказа
func SnapshotItems(lines []CartLineItem) []OrderItem {
	out := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderItem{
			ProductID:     l.ProductID,
			Name:          l.Name,
			UnitPrice:     l.UnitPrice,
			ImageURL:      l.ImageURL,
			SelectedSize:  l.SelectedSize,
			SelectedColor: l.SelectedColor,
			Quantity:      l.Quantity,
		})
	}
	return out
}

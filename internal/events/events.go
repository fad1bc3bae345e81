// Package events publishes domain events about placed orders.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

//go:generate mockgen -source=events.go -destination=mock/publisher_mock.go -package=mock_events

const (
	OrderExchange         = "order_exchange"
	OrderPlacedRoutingKey = "order.placed"
)

// OrderPlaced is the payload sent once an order is stored.
type OrderPlaced struct {
	OrderID  int64             `json:"orderId"`
	Email    string            `json:"email"`
	Items    []OrderPlacedItem `json:"items"`
	Total    decimal.Decimal   `json:"total"`
	Status   string            `json:"status"`
	PlacedAt time.Time         `json:"placedAt"`
}

type OrderPlacedItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// NewOrderPlaced builds the event from a stored order.
func NewOrderPlaced(o domain.Order) OrderPlaced {
	items := make([]OrderPlacedItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderPlacedItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderPlaced{
		OrderID:  o.ID,
		Email:    o.Customer.Email,
		Items:    items,
		Total:    o.Total,
		Status:   string(o.Status),
		PlacedAt: o.OrderDate,
	}
}

// Publisher delivers order events to whoever listens.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o domain.Order) error
}

// LogPublisher only writes the event to the log.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishOrderPlaced(_ context.Context, o domain.Order) error {
	ev := NewOrderPlaced(o)
	p.log.Info().
		Str("routing_key", OrderPlacedRoutingKey).
		Int64("order_id", ev.OrderID).
		Int("items", len(ev.Items)).
		Str("total", ev.Total.StringFixed(2)).
		Msg("order placed")
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shopflow/internal/cart"
	"shopflow/internal/domain"
	"shopflow/internal/events"
	"shopflow/internal/notify"
	"shopflow/internal/repository"
)

var ErrEmptyCart = errors.New("cart is empty")

// Сообщения покупателю при оформлении
const (
	MsgOrderPlaced    = "Order placed successfully!"
	MsgOrderFailed    = "Failed to place order. Please try again."
	MsgFieldsRequired = "Please fill in all required fields"
)

var (
	taxRate           = decimal.RequireFromString("0.08")
	freeShippingAbove = decimal.NewFromInt(100)
	flatShipping      = decimal.RequireFromString("9.99")
	emailPattern      = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// Cart то, что оформление заказа использует от корзины.
// Checkout передаёт place копию позиций под блокировкой корзины и очищает
// корзину, только если place завершился без ошибки.
type Cart interface {
	Checkout(ctx context.Context, place func([]domain.CartLineItem) error) error
}

// Quote расчёт суммы заказа
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// ShippingInfo данные формы оформления. Платёжные данные не принимаются и не хранятся.
type ShippingInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// Validate проверяет обязательные поля и формат email
func (in ShippingInfo) Validate() error {
	for _, v := range []string{in.Name, in.Email, in.Phone, in.Address, in.City, in.State, in.ZipCode} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: missing required field", ErrInvalidInput)
		}
	}
	if !emailPattern.MatchString(in.Email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

// Customer сворачивает адрес в одну строку: "address, city, state zip"
func (in ShippingInfo) Customer() domain.CustomerInfo {
	return domain.CustomerInfo{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: fmt.Sprintf("%s, %s, %s %s", strings.TrimSpace(in.Address), strings.TrimSpace(in.City), strings.TrimSpace(in.State), strings.TrimSpace(in.ZipCode)),
	}
}

// CheckoutService превращает корзину в заказ
type CheckoutService struct {
	products      repository.ProductRepository
	orders        *OrderService
	publisher     events.Publisher
	log           zerolog.Logger
	maxConcurrent int
}

func NewCheckoutService(products repository.ProductRepository, orders *OrderService, publisher events.Publisher, log zerolog.Logger, maxConcurrent int) *CheckoutService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &CheckoutService{
		products:      products,
		orders:        orders,
		publisher:     publisher,
		log:           log,
		maxConcurrent: maxConcurrent,
	}
}

// Quote налог 8%, доставка бесплатна при сумме больше 100, иначе 9.99
func (s *CheckoutService) Quote(items []domain.CartLineItem) Quote {
	subtotal := cart.Total(items)
	tax := subtotal.Mul(taxRate).Round(2)
	shipping := flatShipping
	if subtotal.GreaterThan(freeShippingAbove) {
		shipping = decimal.Zero
	}
	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}

// PlaceOrder проверяет наличие, создаёт заказ и очищает корзину.
// При любой ошибке корзина не меняется.
func (s *CheckoutService) PlaceOrder(ctx context.Context, c Cart, info ShippingInfo) (*domain.Order, error) {
	sink := notify.FromContext(ctx)
	if err := info.Validate(); err != nil {
		sink.Notify(notify.LevelError, MsgFieldsRequired)
		return nil, err
	}
	var o *domain.Order
	err := c.Checkout(ctx, func(items []domain.CartLineItem) error {
		if len(items) == 0 {
			return ErrEmptyCart
		}
		if err := s.checkStock(ctx, items); err != nil {
			return err
		}
		q := s.Quote(items)
		created, err := s.orders.Create(ctx, OrderInput{
			Items:    domain.SnapshotItems(items),
			Subtotal: q.Subtotal,
			Tax:      q.Tax,
			Shipping: q.Shipping,
			Total:    q.Total,
			Customer: info.Customer(),
		})
		if err != nil {
			s.log.Error().Err(err).Msg("order creation failed")
			return err
		}
		o = created
		return nil
	})
	if o == nil {
		if !errors.Is(err, ErrEmptyCart) {
			sink.Notify(notify.LevelError, MsgOrderFailed)
		}
		return nil, err
	}
	if err != nil {
		// the order exists already, so the failure is only reported
		s.log.Error().Err(err).Int64("order_id", o.ID).Msg("clear cart after checkout")
	}
	if err := s.publisher.PublishOrderPlaced(ctx, *o); err != nil {
		s.log.Warn().Err(err).Int64("order_id", o.ID).Msg("publish order placed")
	}
	s.log.Info().Int64("order_id", o.ID).Str("total", o.Total.StringFixed(2)).Msg("order placed")
	sink.Notify(notify.LevelSuccess, MsgOrderPlaced)
	return o, nil
}

// checkStock сверяет позиции с каталогом параллельно; количество суммируется по товару
func (s *CheckoutService) checkStock(ctx context.Context, items []domain.CartLineItem) error {
	need := make(map[int64]int)
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := need[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		need[it.ProductID] += it.Quantity
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, id := range ids {
		g.Go(func() error {
			p, err := s.products.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("product %d: %w", id, err)
			}
			if p.Stock < need[id] {
				return fmt.Errorf("%w: product %d has %d, need %d", ErrNotEnoughStock, id, p.Stock, need[id])
			}
			return nil
		})
	}
	return g.Wait()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

// OrderService реализует логику заказов: создание, чтение, смена статуса
type OrderService struct {
	orders repository.OrderRepository
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders, now: func() time.Time { return time.Now().UTC() }}
}

var (
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrInvalidState   = errors.New("invalid state")
	ErrCreationFailed = errors.New("order creation failed")
)

// OrderInput данные для создания заказа
type OrderInput struct {
	Items    []domain.OrderItem
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Customer domain.CustomerInfo
}

// Create сохраняет заказ со статусом confirmed и текущим временем UTC.
// Ошибка хранилища оборачивается в ErrCreationFailed.
func (s *OrderService) Create(ctx context.Context, in OrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrInvalidInput
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, ErrInvalidInput
		}
	}
	o := domain.Order{
		Items:     append([]domain.OrderItem(nil), in.Items...),
		Subtotal:  in.Subtotal,
		Tax:       in.Tax,
		Shipping:  in.Shipping,
		Total:     in.Total,
		Customer:  in.Customer,
		OrderDate: s.now(),
		Status:    domain.OrderStatusConfirmed,
	}
	if err := s.orders.Create(ctx, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	return &o, nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

// GetAll возвращает все заказы, новые первыми
func (s *OrderService) GetAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// допустимые переходы статусов
var transitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus переводит заказ в новый статус, если переход допустим
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(o.Status, status) {
		return nil, ErrInvalidState
	}
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	o.Status = status
	return o, nil
}

// CancelOrder отменяет заказ в статусе pending или confirmed
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"shopflow/internal/cart"
	"shopflow/internal/domain"
	mock_events "shopflow/internal/events/mock"
	"shopflow/internal/notify"
	"shopflow/internal/repository"
	"shopflow/internal/storage"
)

type checkoutFixture struct {
	checkout  *CheckoutService
	orders    *OrderService
	catalog   *repository.MemoryStore
	publisher *mock_events.MockPublisher
	cart      *cart.Store
}

func newCheckoutFixture(t *testing.T, orders repository.OrderRepository) checkoutFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	ps, err := repository.SeedProducts()
	require.NoError(t, err)
	catalog := repository.NewMemoryStore(ps)
	if orders == nil {
		orders = repository.NewMemoryOrders(catalog)
	}
	os := NewOrderService(orders)
	pub := mock_events.NewMockPublisher(ctrl)
	c := cart.NewStore(storage.NewMemorySlots(), cart.StorageKey, cart.WithStockLimit(false))
	require.NoError(t, c.Load(context.Background()))
	return checkoutFixture{
		checkout:  NewCheckoutService(catalog, os, pub, zerolog.Nop(), 2),
		orders:    os,
		catalog:   catalog,
		publisher: pub,
		cart:      c,
	}
}

func (f checkoutFixture) add(t *testing.T, id int64, size, color string, qty int) {
	t.Helper()
	p, err := f.catalog.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, f.cart.Add(context.Background(), *p, size, color, qty))
}

var shipTo = ShippingInfo{
	Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0100",
	Address: "12 Analytical Way", City: "London", State: "LDN", ZipCode: "N1",
}

func TestQuote(t *testing.T) {
	s := NewCheckoutService(nil, nil, nil, zerolog.Nop(), 0)
	line := func(price string, qty int) domain.CartLineItem {
		return domain.CartLineItem{UnitPrice: decimal.RequireFromString(price), Quantity: qty}
	}

	q := s.Quote([]domain.CartLineItem{line("25", 2)})
	assert.Equal(t, "50.00", q.Subtotal.StringFixed(2))
	assert.Equal(t, "4.00", q.Tax.StringFixed(2))
	assert.Equal(t, "9.99", q.Shipping.StringFixed(2))
	assert.Equal(t, "63.99", q.Total.StringFixed(2))

	// exactly 100 still pays shipping
	q = s.Quote([]domain.CartLineItem{line("100", 1)})
	assert.Equal(t, "9.99", q.Shipping.StringFixed(2))

	q = s.Quote([]domain.CartLineItem{line("100.01", 1)})
	assert.True(t, q.Shipping.IsZero())
	assert.Equal(t, "8.00", q.Tax.StringFixed(2))
	assert.Equal(t, "108.01", q.Total.StringFixed(2))

	q = s.Quote(nil)
	assert.True(t, q.Subtotal.IsZero())
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t, nil)
	f.add(t, 4, "M", "Dark Wash", 1)
	f.add(t, 7, "", "Sand", 2)
	wantItems := domain.SnapshotItems(f.cart.Items())

	f.publisher.EXPECT().PublishOrderPlaced(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, o domain.Order) error {
			assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
			return nil
		}).Times(1)

	var rec notify.Recorder
	o, err := f.checkout.PlaceOrder(notify.NewContext(ctx, &rec), f.cart, shipTo)
	require.NoError(t, err)
	assert.Equal(t, wantItems, o.Items)
	assert.Equal(t, "12 Analytical Way, London, LDN N1", o.Customer.Address)
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)))
	assert.Empty(t, f.cart.Items())
	assert.Equal(t, []notify.Message{{Level: notify.LevelSuccess, Text: MsgOrderPlaced}}, rec.Drain())

	stored, err := f.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, stored.Items)
}

func TestPlaceOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.add(t, 1, "", "Black", 1)
	f.publisher.EXPECT().PublishOrderPlaced(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	o, err := f.checkout.PlaceOrder(context.Background(), f.cart, shipTo)
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Empty(t, f.cart.Items())
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	_, err := f.checkout.PlaceOrder(context.Background(), f.cart, shipTo)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_InvalidShipping(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.add(t, 1, "", "", 1)

	bad := shipTo
	bad.Email = "not-an-email"
	var rec notify.Recorder
	_, err := f.checkout.PlaceOrder(notify.NewContext(context.Background(), &rec), f.cart, bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, MsgFieldsRequired, rec.Drain()[0].Text)

	bad = shipTo
	bad.ZipCode = " "
	_, err = f.checkout.PlaceOrder(context.Background(), f.cart, bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, f.cart.Items(), 1)
}

func TestPlaceOrder_NotEnoughStock(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	// product 16 has 5 in stock; two variants together exceed it
	f.add(t, 16, "", "Graphite", 3)
	f.add(t, 16, "", "", 3)

	_, err := f.checkout.PlaceOrder(context.Background(), f.cart, shipTo)
	assert.ErrorIs(t, err, ErrNotEnoughStock)
	assert.Len(t, f.cart.Items(), 2)
}

func TestPlaceOrder_ProductGone(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	gone := domain.Product{ID: 500, Name: "Ghost", Price: decimal.NewFromInt(1), Stock: 1}
	require.NoError(t, f.cart.Add(context.Background(), gone, "", "", 1))

	_, err := f.checkout.PlaceOrder(context.Background(), f.cart, shipTo)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Len(t, f.cart.Items(), 1)
}

func TestPlaceOrder_CreationFailureKeepsCart(t *testing.T) {
	f := newCheckoutFixture(t, failingOrders{})
	f.add(t, 2, "M", "Navy", 1)

	var rec notify.Recorder
	_, err := f.checkout.PlaceOrder(notify.NewContext(context.Background(), &rec), f.cart, shipTo)
	assert.ErrorIs(t, err, ErrCreationFailed)
	assert.Len(t, f.cart.Items(), 1)
	assert.Equal(t, []notify.Message{{Level: notify.LevelError, Text: MsgOrderFailed}}, rec.Drain())
}

// slowOrders задерживает создание заказа и сигналит о его начале
type slowOrders struct {
	repository.OrderRepository
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func (s *slowOrders) Create(ctx context.Context, o *domain.Order) error {
	s.once.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	return s.OrderRepository.Create(ctx, o)
}

func newSlowFixture(t *testing.T) (checkoutFixture, *slowOrders) {
	t.Helper()
	ps, err := repository.SeedProducts()
	require.NoError(t, err)
	slow := &slowOrders{
		OrderRepository: repository.NewMemoryOrders(repository.NewMemoryStore(ps)),
		delay:           50 * time.Millisecond,
		started:         make(chan struct{}),
	}
	return newCheckoutFixture(t, slow), slow
}

func TestPlaceOrder_ConcurrentSubmitsCreateOneOrder(t *testing.T) {
	ctx := context.Background()
	f, _ := newSlowFixture(t)
	f.add(t, 1, "", "Black", 1)
	f.publisher.EXPECT().PublishOrderPlaced(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.checkout.PlaceOrder(ctx, f.cart, shipTo)
		}()
	}
	wg.Wait()

	placed, empty := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			placed++
		case errors.Is(err, ErrEmptyCart):
			empty++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, empty)

	all, err := f.orders.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, f.cart.Items())
}

func TestPlaceOrder_ItemAddedDuringCheckoutIsKept(t *testing.T) {
	ctx := context.Background()
	f, slow := newSlowFixture(t)
	f.add(t, 1, "", "Black", 1)
	late, err := f.catalog.GetByID(ctx, 2)
	require.NoError(t, err)
	f.publisher.EXPECT().PublishOrderPlaced(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	type result struct {
		order *domain.Order
		err   error
	}
	done := make(chan result, 1)
	go func() {
		o, err := f.checkout.PlaceOrder(ctx, f.cart, shipTo)
		done <- result{o, err}
	}()

	<-slow.started
	added := make(chan error, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		added <- f.cart.Add(ctx, *late, "", "", 1)
	}()

	res := <-done
	require.NoError(t, res.err)
	require.NoError(t, <-added)

	ordered := map[int64]bool{}
	for _, it := range res.order.Items {
		ordered[it.ProductID] = true
	}
	inCart := map[int64]bool{}
	for _, it := range f.cart.Items() {
		inCart[it.ProductID] = true
	}
	assert.True(t, ordered[1])
	assert.False(t, inCart[1])
	assert.True(t, ordered[2] != inCart[2], "the late item must be either ordered or still in the cart")
}

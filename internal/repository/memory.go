package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shopflow/internal/domain"
)

// MemoryStore объединённое in-memory хранилище: статический каталог и заказы
type MemoryStore struct {
	mu          sync.RWMutex
	latency     time.Duration
	nextOrderID int64
	products    []domain.Product
	ordersByID  map[int64]domain.Order
}

type MemoryOption func(*MemoryStore)

// WithLatency задерживает каждый запрос, имитируя сеть
func WithLatency(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.latency = d }
}

func NewMemoryStore(products []domain.Product, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		nextOrderID: 1,
		products:    append([]domain.Product(nil), products...),
		ordersByID:  make(map[int64]domain.Order),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// wait sleeps for the configured latency unless ctx ends first.
func (m *MemoryStore) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

func (m *MemoryStore) filter(keep func(domain.Product) bool) []domain.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, p := range m.products {
		if keep(p) {
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

func (m *MemoryStore) All(ctx context.Context) ([]domain.Product, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.filter(func(domain.Product) bool { return true }), nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	found := m.filter(func(p domain.Product) bool { return p.ID == id })
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (m *MemoryStore) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.filter(func(p domain.Product) bool { return strings.EqualFold(p.Category, category) }), nil
}

func (m *MemoryStore) Search(ctx context.Context, text string) ([]domain.Product, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.filter(func(p domain.Product) bool {
		return containsIgnoreCase(p.Name, text) ||
			containsIgnoreCase(p.Description, text) ||
			containsIgnoreCase(p.Category, text)
	}), nil
}

func (m *MemoryStore) Featured(ctx context.Context, minRating float64, limit int) ([]domain.Product, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := m.filter(func(p domain.Product) bool { return p.Rating >= minRating })
	sortByRating(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range m.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	if err := mo.store.wait(ctx); err != nil {
		return err
	}
	mo.store.mu.Lock()
	defer mo.store.mu.Unlock()
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	mo.store.ordersByID[o.ID] = cloneOrder(*o)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	if err := mo.store.wait(ctx); err != nil {
		return nil, err
	}
	mo.store.mu.RLock()
	defer mo.store.mu.RUnlock()
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := cloneOrder(o)
	return &cp, nil
}

func (mo *MemoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	if err := mo.store.wait(ctx); err != nil {
		return nil, err
	}
	mo.store.mu.RLock()
	defer mo.store.mu.RUnlock()
	out := make([]domain.Order, 0, len(mo.store.ordersByID))
	for _, o := range mo.store.ordersByID {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (mo *MemoryOrders) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	if err := mo.store.wait(ctx); err != nil {
		return err
	}
	mo.store.mu.Lock()
	defer mo.store.mu.Unlock()
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	mo.store.ordersByID[id] = o
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	p.Sizes = append([]string(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	return p
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

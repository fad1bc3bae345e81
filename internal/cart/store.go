// Package cart owns the shopping cart state of one shopper and keeps it in a
// durable storage slot.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
	"shopflow/internal/notify"
	"shopflow/internal/storage"
)

// StorageKey is the slot key used by a store without a session suffix.
const StorageKey = "shopflow-cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
	ErrPersist         = errors.New("failed to persist cart")
	ErrSlotUnavailable = errors.New("cart storage unavailable")
)

// Key identifies a line. Two additions with the same key merge into one line.
type Key struct {
	ProductID int64
	Size      string
	Color     string
}

func keyOf(l domain.CartLineItem) Key {
	return Key{ProductID: l.ProductID, Size: l.SelectedSize, Color: l.SelectedColor}
}

type Option func(*Store)

// WithNotifier sets the sink that receives every cart notification.
func WithNotifier(s notify.Sink) Option {
	return func(st *Store) { st.notifier = s }
}

func WithLogger(log zerolog.Logger) Option {
	return func(st *Store) { st.log = log }
}

// WithStockLimit toggles the stock ceiling check on Add and UpdateQuantity.
func WithStockLimit(enforce bool) Option {
	return func(st *Store) { st.enforceStock = enforce }
}

// Store holds the ordered cart lines and the cart panel flag.
// Every mutation writes the full line list to the slot before it returns.
type Store struct {
	mu           sync.Mutex
	slots        storage.Slots
	key          string
	items        []domain.CartLineItem
	open         bool
	notifier     notify.Sink
	log          zerolog.Logger
	enforceStock bool
}

func NewStore(slots storage.Slots, key string, opts ...Option) *Store {
	s := &Store{
		slots:        slots,
		key:          key,
		items:        []domain.CartLineItem{},
		notifier:     notify.Discard{},
		log:          zerolog.Nop(),
		enforceStock: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load hydrates the store from its slot. A missing or malformed slot leaves
// the cart empty; only slot I/O failures are returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartLineItem{}

	data, err := s.slots.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrSlotUnavailable, s.key, err)
	}
	items, err := decodeLines(data)
	if err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("error loading cart from storage")
		return nil
	}
	s.items = items
	return nil
}

// Add merges quantity into the line matching (product, size, color) or appends
// a new line snapshotting the product.
func (s *Store) Add(ctx context.Context, p domain.Product, size, color string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key{ProductID: p.ID, Size: size, Color: color}
	next := s.cloneItems()
	if i := indexOf(next, k); i >= 0 {
		if err := s.checkStock(next[i].Quantity+quantity, p.Stock); err != nil {
			return err
		}
		next[i].Quantity += quantity
	} else {
		if err := s.checkStock(quantity, p.Stock); err != nil {
			return err
		}
		next = append(next, domain.CartLineItem{
			ProductID:      p.ID,
			Name:           p.Name,
			UnitPrice:      p.Price,
			ImageURL:       p.PrimaryImage(),
			SelectedSize:   size,
			SelectedColor:  color,
			Quantity:       quantity,
			AvailableStock: p.Stock,
		})
	}
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.notify(ctx, notify.LevelSuccess, fmt.Sprintf("Added %s to cart!", p.Name))
	return nil
}

// Remove deletes the matching line. Removing an absent line is not an error.
func (s *Store) Remove(ctx context.Context, productID int64, size, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, Key{ProductID: productID, Size: size, Color: color})
}

func (s *Store) remove(ctx context.Context, k Key) error {
	if i := indexOf(s.items, k); i >= 0 {
		next := s.cloneItems()
		next = append(next[:i], next[i+1:]...)
		if err := s.commit(ctx, next); err != nil {
			return err
		}
	}
	s.notify(ctx, notify.LevelInfo, "Item removed from cart")
	return nil
}

// UpdateQuantity sets the line quantity; n <= 0 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, size, color string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key{ProductID: productID, Size: size, Color: color}
	if n <= 0 {
		return s.remove(ctx, k)
	}
	i := indexOf(s.items, k)
	if i < 0 {
		return nil
	}
	if err := s.checkStock(n, s.items[i].AvailableStock); err != nil {
		return err
	}
	next := s.cloneItems()
	next[i].Quantity = n
	return s.commit(ctx, next)
}

// Clear empties the cart and erases its slot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slots.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.items = []domain.CartLineItem{}
	return nil
}

// Checkout hands a copy of the lines to place while holding the cart lock and
// clears the cart once place succeeds. No mutation can land between the
// snapshot and the clear. place must not call back into the store.
//
// If place fails the cart is left untouched. If the slot cannot be erased
// afterwards the lines are still dropped from memory and ErrPersist is
// returned.
func (s *Store) Checkout(ctx context.Context, place func([]domain.CartLineItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := place(s.cloneItems()); err != nil {
		return err
	}
	s.items = []domain.CartLineItem{}
	if err := s.slots.Delete(ctx, s.key); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("cart erase after checkout failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Snapshot is a consistent view of the cart taken under a single lock.
type Snapshot struct {
	Items     []domain.CartLineItem
	Total     decimal.Decimal
	ItemCount int
	IsOpen    bool
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Items:     s.cloneItems(),
		Total:     Total(s.items),
		ItemCount: count(s.items),
		IsOpen:    s.open,
	}
}

// Total is the sum of unit price times quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

// ItemCount is the sum of quantities over all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return count(s.items)
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneItems()
}

func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Total sums a line list.
func Total(lines []domain.CartLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range lines {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func count(lines []domain.CartLineItem) int {
	n := 0
	for _, it := range lines {
		n += it.Quantity
	}
	return n
}

func (s *Store) commit(ctx context.Context, next []domain.CartLineItem) error {
	data, err := encodeLines(next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.slots.Put(ctx, s.key, data); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("cart write failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.items = next
	return nil
}

func (s *Store) checkStock(want, stock int) error {
	if !s.enforceStock {
		return nil
	}
	if stock <= 0 {
		return ErrOutOfStock
	}
	if want > stock {
		return fmt.Errorf("%w: only %d available", ErrExceedsStock, stock)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, level notify.Level, text string) {
	s.notifier.Notify(level, text)
	notify.FromContext(ctx).Notify(level, text)
}

func (s *Store) cloneItems() []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

func indexOf(items []domain.CartLineItem, k Key) int {
	for i, it := range items {
		if keyOf(it) == k {
			return i
		}
	}
	return -1
}

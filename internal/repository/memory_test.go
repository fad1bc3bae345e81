package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

func seededStore(t *testing.T, opts ...MemoryOption) *MemoryStore {
	t.Helper()
	ps, err := SeedProducts()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewMemoryStore(ps, opts...)
}

func TestMemoryStore_GetByID(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	got, err := store.GetByID(ctx, 4)
	if err != nil || got.ID != 4 {
		t.Fatalf("get: %v", err)
	}
	// mutate copy, store must not change
	got.Images[0] = "changed"
	again, _ := store.GetByID(ctx, 4)
	if again.Images[0] == "changed" {
		t.Fatalf("store leaked internal slice")
	}

	if _, err := store.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_ByCategory(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	list, err := store.ByCategory(ctx, "electronics")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 electronics, got %d", len(list))
	}
	for _, p := range list {
		if !strings.EqualFold(p.Category, "Electronics") {
			t.Fatalf("category filter fail: %s", p.Category)
		}
	}
	// seed order preserved
	if list[0].ID != 1 || list[3].ID != 16 {
		t.Fatalf("unexpected order %d..%d", list[0].ID, list[3].ID)
	}
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	// name
	list, _ := store.Search(ctx, "HEADPHONES")
	if len(list) != 1 || list[0].ID != 1 {
		t.Fatalf("name search: %v", list)
	}
	// description
	list, _ = store.Search(ctx, "bergamot")
	if len(list) != 1 || list[0].ID != 9 {
		t.Fatalf("description search: %v", list)
	}
	// category
	list, _ = store.Search(ctx, "sport")
	if len(list) != 3 {
		t.Fatalf("category search: %d", len(list))
	}
	// empty matches all
	all, _ := store.All(ctx)
	list, _ = store.Search(ctx, "")
	if len(list) != len(all) {
		t.Fatalf("empty search should match all")
	}
}

func TestMemoryStore_Featured(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	list, err := store.Featured(ctx, 4.5, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 8 {
		t.Fatalf("expected 8, got %d", len(list))
	}
	for i, p := range list {
		if p.Rating < 4.5 {
			t.Fatalf("rating below threshold: %v", p.Rating)
		}
		if i > 0 && list[i-1].Rating < p.Rating {
			t.Fatalf("not sorted desc at %d", i)
		}
	}
}

func TestMemoryStore_Categories(t *testing.T) {
	store := seededStore(t)
	cats, _ := store.Categories(context.Background())
	want := []string{"Accessories", "Clothing", "Electronics", "Home", "Sports"}
	if strings.Join(cats, ",") != strings.Join(want, ",") {
		t.Fatalf("categories %v", cats)
	}
}

func TestMemoryStore_Latency(t *testing.T) {
	store := seededStore(t, WithLatency(50*time.Millisecond))

	start := time.Now()
	if _, err := store.All(context.Background()); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("latency not applied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.All(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestMemoryOrders_CreateGetList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	orders := NewMemoryOrders(store)

	for i := 0; i < 3; i++ {
		o := domain.Order{
			Items:  []domain.OrderItem{{ProductID: 1, Quantity: i + 1, UnitPrice: decimal.NewFromInt(5)}},
			Total:  decimal.NewFromInt(int64(5 * (i + 1))),
			Status: domain.OrderStatusConfirmed,
		}
		if err := orders.Create(ctx, &o); err != nil {
			t.Fatalf("create: %v", err)
		}
		if o.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, o.ID)
		}
	}

	got, err := orders.GetByID(ctx, 2)
	if err != nil || got.Items[0].Quantity != 2 {
		t.Fatalf("get: %v", err)
	}
	if _, err := orders.GetByID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}

	list, _ := orders.List(ctx)
	if len(list) != 3 || list[0].ID != 3 || list[2].ID != 1 {
		t.Fatalf("expected newest first: %v", list)
	}

	if err := orders.UpdateStatus(ctx, 1, domain.OrderStatusShipped); err != nil {
		t.Fatal(err)
	}
	got, _ = orders.GetByID(ctx, 1)
	if got.Status != domain.OrderStatusShipped {
		t.Fatalf("status not updated")
	}
	if err := orders.UpdateStatus(ctx, 42, domain.OrderStatusShipped); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
}

func TestSeedProducts(t *testing.T) {
	ps, err := SeedProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 16 {
		t.Fatalf("expected 16 seed products, got %d", len(ps))
	}
	seen := make(map[int64]bool)
	for _, p := range ps {
		if seen[p.ID] {
			t.Fatalf("duplicate id %d", p.ID)
		}
		seen[p.ID] = true
		if len(p.Images) == 0 || p.Price.Sign() <= 0 {
			t.Fatalf("product %d incomplete", p.ID)
		}
	}
}

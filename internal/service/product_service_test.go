package service

import (
	"context"
	"errors"
	"testing"

	"shopflow/internal/repository"
)

func setupPS(t *testing.T) *ProductService {
	t.Helper()
	ps, err := repository.SeedProducts()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewProductService(repository.NewMemoryStore(ps))
}

func TestProduct_GetByID(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.ID != 1 {
		t.Fatalf("wrong product %d", p.ID)
	}
	if _, err := ps.GetByID(ctx, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := ps.GetByID(ctx, 999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProduct_GetByCategory(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	all, _ := ps.GetAll(ctx)

	for _, c := range []string{"all", "ALL", "", "  "} {
		list, err := ps.GetByCategory(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != len(all) {
			t.Fatalf("category %q: expected whole catalog", c)
		}
	}

	list, _ := ps.GetByCategory(ctx, "clothing")
	if len(list) != 3 {
		t.Fatalf("expected 3 clothing products, got %d", len(list))
	}
	list, _ = ps.GetByCategory(ctx, "Toys")
	if len(list) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestProduct_Search(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	list, err := ps.Search(ctx, "  leather ")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 leather products, got %d", len(list))
	}
}

func TestProduct_GetFeatured(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	list, err := ps.GetFeatured(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) > FeaturedLimit {
		t.Fatalf("too many featured: %d", len(list))
	}
	if list[0].Rating != 4.9 {
		t.Fatalf("expected best rated first, got %v", list[0].Rating)
	}
	for i := 1; i < len(list); i++ {
		if list[i].Rating < FeaturedMinRating || list[i].Rating > list[i-1].Rating {
			t.Fatalf("featured order broken at %d", i)
		}
	}
}

func TestProduct_Browse(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	list, err := ps.Browse(ctx, "Accessories", "watch")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != 12 {
		t.Fatalf("unexpected browse result %v", list)
	}
	list, _ = ps.Browse(ctx, "all", "watch")
	if len(list) != 2 {
		t.Fatalf("expected 2 watches, got %d", len(list))
	}
}

func TestProduct_Categories(t *testing.T) {
	ps := setupPS(t)
	cats, err := ps.Categories(context.Background())
	if err != nil || len(cats) != 5 {
		t.Fatalf("categories: %v %v", cats, err)
	}
}

package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"shopflow/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrMalformedRecord запись хранилища не удалось разобрать в доменную модель
var ErrMalformedRecord = errors.New("malformed record")

// ProductRepository интерфейс каталога товаров (только чтение).
// Реализации: MemoryStore (статические данные) и RecordCatalog (удалённое хранилище записей).
type ProductRepository interface {
	All(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	ByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Search(ctx context.Context, text string) ([]domain.Product, error)
	Featured(ctx context.Context, minRating float64, limit int) ([]domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// List возвращает заказы, новые первыми
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortByRating orders products by rating desc, ties by id.
func sortByRating(ps []domain.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Rating != ps[j].Rating {
			return ps[i].Rating > ps[j].Rating
		}
		return ps[i].ID < ps[j].ID
	})
}

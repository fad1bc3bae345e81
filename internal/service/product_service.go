package service

import (
	"context"
	"errors"
	"strings"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

// Параметры витрины "рекомендуемые товары"
const (
	FeaturedMinRating = 4.5
	FeaturedLimit     = 8
)

// AllCategories значение фильтра, отключающее фильтрацию по категории
const AllCategories = "all"

// ProductService инкапсулирует чтение каталога товаров
type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

var ErrInvalidInput = errors.New("invalid input")

func (s *ProductService) GetAll(ctx context.Context) ([]domain.Product, error) {
	return s.repo.All(ctx)
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// GetByCategory без учёта регистра; "all" или пустая строка возвращают весь каталог
func (s *ProductService) GetByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		return s.repo.All(ctx)
	}
	return s.repo.ByCategory(ctx, category)
}

// Search ищет подстроку в названии, описании и категории
func (s *ProductService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query))
}

func (s *ProductService) GetFeatured(ctx context.Context) ([]domain.Product, error) {
	return s.repo.Featured(ctx, FeaturedMinRating, FeaturedLimit)
}

func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Browse объединяет фильтр по категории и поиск, как на странице каталога
func (s *ProductService) Browse(ctx context.Context, category, query string) ([]domain.Product, error) {
	list, err := s.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return list, nil
	}
	q := strings.ToLower(query)
	out := make([]domain.Product, 0, len(list))
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

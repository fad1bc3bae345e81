package repository

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"

	"shopflow/internal/domain"
)

//go:embed seed/products.json
var seedProducts []byte

// SeedProducts возвращает статический каталог, встроенный в бинарник
func SeedProducts() ([]domain.Product, error) {
	var ps []domain.Product
	if err := json.Unmarshal(seedProducts, &ps); err != nil {
		return nil, fmt.Errorf("decode seed products: %w", err)
	}
	return ps, nil
}

package cart

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

// ErrStorageDecode persisted cart data could not be decoded.
var ErrStorageDecode = errors.New("malformed persisted cart")

// wireLine is the persisted shape of one line. Field names match what browser
// clients already keep in local storage, so a slot can be shared with them.
type wireLine struct {
	ProductID     int64       `json:"productId"`
	Name          string      `json:"name"`
	Price         json.Number `json:"price"`
	Image         string      `json:"image"`
	SelectedSize  *string     `json:"selectedSize"`
	SelectedColor *string     `json:"selectedColor"`
	Quantity      int         `json:"quantity"`
	Stock         int         `json:"stock"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// encodeLines serialises lines as a JSON array, insertion order preserved.
func encodeLines(lines []domain.CartLineItem) ([]byte, error) {
	wire := make([]wireLine, 0, len(lines))
	for _, l := range lines {
		wire = append(wire, wireLine{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Price:         json.Number(l.UnitPrice.String()),
			Image:         l.ImageURL,
			SelectedSize:  optional(l.SelectedSize),
			SelectedColor: optional(l.SelectedColor),
			Quantity:      l.Quantity,
			Stock:         l.AvailableStock,
		})
	}
	return json.Marshal(wire)
}

// decodeLines is the inverse of encodeLines. Any line breaking the cart
// invariants makes the whole payload invalid.
func decodeLines(data []byte) ([]domain.CartLineItem, error) {
	var wire []wireLine
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageDecode, err)
	}
	out := make([]domain.CartLineItem, 0, len(wire))
	seen := make(map[Key]struct{}, len(wire))
	for i, w := range wire {
		price, err := decimal.NewFromString(w.Price.String())
		if err != nil {
			return nil, fmt.Errorf("%w: line %d price %q", ErrStorageDecode, i, w.Price)
		}
		if w.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d quantity %d", ErrStorageDecode, i, w.Quantity)
		}
		line := domain.CartLineItem{
			ProductID:      w.ProductID,
			Name:           w.Name,
			UnitPrice:      price,
			ImageURL:       w.Image,
			SelectedSize:   deref(w.SelectedSize),
			SelectedColor:  deref(w.SelectedColor),
			Quantity:       w.Quantity,
			AvailableStock: w.Stock,
		}
		k := keyOf(line)
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: duplicate line %v", ErrStorageDecode, k)
		}
		seen[k] = struct{}{}
		out = append(out, line)
	}
	return out, nil
}

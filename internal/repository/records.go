package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

// RecordSchemaVersion версия денормализованной схемы записей.
//
// v1:
//   - products: images, sizes, colors хранятся строкой через ","
//   - orders: позиции хранятся параллельными колонками item_*, значения через "\n"
const RecordSchemaVersion = 1

const (
	listSep     = ","
	parallelSep = "\n"
)

// ProductRecord строка таблицы products
type ProductRecord struct {
	ID            int64           `gorm:"primaryKey"`
	SchemaVersion int             `gorm:"not null;default:1"`
	Name          string          `gorm:"not null"`
	Description   string          `gorm:"type:text"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Category      string          `gorm:"index;not null"`
	Images        string          `gorm:"type:text"`
	Rating        float64         `gorm:"index"`
	ReviewCount   int
	Stock         int
	Sizes         string `gorm:"type:text"`
	Colors        string `gorm:"type:text"`
}

func (ProductRecord) TableName() string { return "products" }

// OrderRecord строка таблицы orders
type OrderRecord struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	SchemaVersion   int             `gorm:"not null;default:1"`
	ItemIDs         string          `gorm:"type:text"`
	ItemNames       string          `gorm:"type:text"`
	ItemPrices      string          `gorm:"type:text"`
	ItemImages      string          `gorm:"type:text"`
	ItemQuantities  string          `gorm:"type:text"`
	ItemSizes       string          `gorm:"type:text"`
	ItemColors      string          `gorm:"type:text"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2)"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2)"`
	Shipping        decimal.Decimal `gorm:"type:numeric(12,2)"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	OrderDate       time.Time `gorm:"index;not null"`
	Status          string    `gorm:"not null"`
}

func (OrderRecord) TableName() string { return "orders" }

// ProductToRecord денормализует товар в запись.
// Значение списка, которое не переживёт разбор обратно, даёт ErrMalformedRecord.
func ProductToRecord(p domain.Product) (ProductRecord, error) {
	images, err := joinList(p.Images)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("%w: product %d images: %v", ErrMalformedRecord, p.ID, err)
	}
	sizes, err := joinList(p.Sizes)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("%w: product %d sizes: %v", ErrMalformedRecord, p.ID, err)
	}
	colors, err := joinList(p.Colors)
	if err != nil {
		return ProductRecord{}, fmt.Errorf("%w: product %d colors: %v", ErrMalformedRecord, p.ID, err)
	}
	return ProductRecord{
		ID:            p.ID,
		SchemaVersion: RecordSchemaVersion,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Category:      p.Category,
		Images:        images,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		Stock:         p.Stock,
		Sizes:         sizes,
		Colors:        colors,
	}, nil
}

// ProductFromRecord разбирает запись обратно в товар
func ProductFromRecord(r ProductRecord) (domain.Product, error) {
	if r.SchemaVersion != RecordSchemaVersion {
		return domain.Product{}, fmt.Errorf("%w: product %d schema version %d", ErrMalformedRecord, r.ID, r.SchemaVersion)
	}
	if r.Rating < 0 || r.Rating > 5 {
		return domain.Product{}, fmt.Errorf("%w: product %d rating %v", ErrMalformedRecord, r.ID, r.Rating)
	}
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Images:      splitList(r.Images),
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
		Stock:       r.Stock,
		Sizes:       splitList(r.Sizes),
		Colors:      splitList(r.Colors),
	}, nil
}

// OrderToRecord кодирует позиции заказа параллельными строками.
// Перевод строки внутри значения даёт ErrMalformedRecord.
func OrderToRecord(o domain.Order) (OrderRecord, error) {
	n := len(o.Items)
	ids := make([]string, n)
	names := make([]string, n)
	prices := make([]string, n)
	images := make([]string, n)
	qtys := make([]string, n)
	sizes := make([]string, n)
	colors := make([]string, n)
	for i, it := range o.Items {
		for _, v := range []string{it.Name, it.ImageURL, it.SelectedSize, it.SelectedColor} {
			if strings.Contains(v, parallelSep) {
				return OrderRecord{}, fmt.Errorf("%w: order item %d value %q spans lines", ErrMalformedRecord, i, v)
			}
		}
		ids[i] = strconv.FormatInt(it.ProductID, 10)
		names[i] = it.Name
		prices[i] = it.UnitPrice.String()
		images[i] = it.ImageURL
		qtys[i] = strconv.Itoa(it.Quantity)
		sizes[i] = it.SelectedSize
		colors[i] = it.SelectedColor
	}
	return OrderRecord{
		ID:              o.ID,
		SchemaVersion:   RecordSchemaVersion,
		ItemIDs:         strings.Join(ids, parallelSep),
		ItemNames:       strings.Join(names, parallelSep),
		ItemPrices:      strings.Join(prices, parallelSep),
		ItemImages:      strings.Join(images, parallelSep),
		ItemQuantities:  strings.Join(qtys, parallelSep),
		ItemSizes:       strings.Join(sizes, parallelSep),
		ItemColors:      strings.Join(colors, parallelSep),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		OrderDate:       o.OrderDate,
		Status:          string(o.Status),
	}, nil
}

// OrderFromRecord собирает позиции заказа из параллельных строк
func OrderFromRecord(r OrderRecord) (domain.Order, error) {
	if r.SchemaVersion != RecordSchemaVersion {
		return domain.Order{}, fmt.Errorf("%w: order %d schema version %d", ErrMalformedRecord, r.ID, r.SchemaVersion)
	}
	n := 0
	if r.ItemIDs != "" {
		n = len(strings.Split(r.ItemIDs, parallelSep))
	}
	cols := map[string]string{
		"item_ids":        r.ItemIDs,
		"item_names":      r.ItemNames,
		"item_prices":     r.ItemPrices,
		"item_images":     r.ItemImages,
		"item_quantities": r.ItemQuantities,
		"item_sizes":      r.ItemSizes,
		"item_colors":     r.ItemColors,
	}
	split := make(map[string][]string, len(cols))
	for name, v := range cols {
		parts, err := splitParallel(v, n)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order %d %s: %v", ErrMalformedRecord, r.ID, name, err)
		}
		split[name] = parts
	}

	items := make([]domain.OrderItem, 0, n)
	for i := 0; i < n; i++ {
		id, err := strconv.ParseInt(split["item_ids"][i], 10, 64)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order %d item %d id: %v", ErrMalformedRecord, r.ID, i, err)
		}
		price, err := decimal.NewFromString(split["item_prices"][i])
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order %d item %d price: %v", ErrMalformedRecord, r.ID, i, err)
		}
		qty, err := strconv.Atoi(split["item_quantities"][i])
		if err != nil || qty < 1 {
			return domain.Order{}, fmt.Errorf("%w: order %d item %d quantity %q", ErrMalformedRecord, r.ID, i, split["item_quantities"][i])
		}
		items = append(items, domain.OrderItem{
			ProductID:     id,
			Name:          split["item_names"][i],
			UnitPrice:     price,
			ImageURL:      split["item_images"][i],
			SelectedSize:  split["item_sizes"][i],
			SelectedColor: split["item_colors"][i],
			Quantity:      qty,
		})
	}

	return domain.Order{
		ID:       r.ID,
		Items:    items,
		Subtotal: r.Subtotal,
		Tax:      r.Tax,
		Shipping: r.Shipping,
		Total:    r.Total,
		Customer: domain.CustomerInfo{
			Name:    r.CustomerName,
			Email:   r.CustomerEmail,
			Phone:   r.CustomerPhone,
			Address: r.CustomerAddress,
		},
		OrderDate: r.OrderDate.UTC(),
		Status:    domain.OrderStatus(r.Status),
	}, nil
}

// joinList accepts only values that splitList gives back unchanged.
func joinList(vs []string) (string, error) {
	for _, v := range vs {
		switch {
		case strings.Contains(v, listSep):
			return "", fmt.Errorf("value %q contains %q", v, listSep)
		case v == "" || strings.TrimSpace(v) != v:
			return "", fmt.Errorf("value %q is blank or padded", v)
		}
	}
	return strings.Join(vs, listSep), nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := make([]string, 0)
	for _, v := range strings.Split(s, listSep) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// splitParallel splits one parallel column and checks it has n entries.
func splitParallel(s string, n int) ([]string, error) {
	if n == 0 {
		if s != "" {
			return nil, fmt.Errorf("values present for an order without items")
		}
		return nil, nil
	}
	parts := strings.Split(s, parallelSep)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	return parts, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"shopflow/internal/domain"
)

// OpenPostgres подключение к удалённому хранилищу записей
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Migrate создаёт таблицы products и orders
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductRecord{}, &OrderRecord{})
}

// RecordCatalog каталог поверх хранилища записей; фильтрация на стороне БД
type RecordCatalog struct {
	db *gorm.DB
}

func NewRecordCatalog(db *gorm.DB) *RecordCatalog { return &RecordCatalog{db: db} }

var _ ProductRepository = (*RecordCatalog)(nil)

// Seed вставляет или обновляет товары
func (r *RecordCatalog) Seed(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	recs := make([]ProductRecord, 0, len(products))
	for _, p := range products {
		rec, err := ProductToRecord(p)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&recs).Error
}

func (r *RecordCatalog) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]domain.Product, error) {
	var recs []ProductRecord
	if err := scope(r.db.WithContext(ctx)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	out := make([]domain.Product, 0, len(recs))
	for _, rec := range recs {
		p, err := ProductFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RecordCatalog) All(ctx context.Context) ([]domain.Product, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

func (r *RecordCatalog) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var rec ProductRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	p, err := ProductFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RecordCatalog) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(category) = ?", strings.ToLower(category)).Order("id")
	})
}

func (r *RecordCatalog) Search(ctx context.Context, text string) ([]domain.Product, error) {
	like := "%" + escapeLike(strings.ToLower(text)) + "%"
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where(
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\'`,
			like, like, like,
		).Order("id")
	})
}

func (r *RecordCatalog) Featured(ctx context.Context, minRating float64, limit int) ([]domain.Product, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		q := db.Where("rating >= ?", minRating).Order("rating DESC").Order("id")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
}

func (r *RecordCatalog) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := r.db.WithContext(ctx).Model(&ProductRecord{}).
		Distinct("category").Order("category").Pluck("category", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// RecordOrders заказы в хранилище записей
type RecordOrders struct {
	db *gorm.DB
}

func NewRecordOrders(db *gorm.DB) *RecordOrders { return &RecordOrders{db: db} }

var _ OrderRepository = (*RecordOrders)(nil)

func (r *RecordOrders) Create(ctx context.Context, o *domain.Order) error {
	rec, err := OrderToRecord(*o)
	if err != nil {
		return err
	}
	rec.ID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID = rec.ID
	return nil
}

func (r *RecordOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var rec OrderRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	o, err := OrderFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *RecordOrders) List(ctx context.Context) ([]domain.Order, error) {
	var recs []OrderRecord
	if err := r.db.WithContext(ctx).Order("order_date DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		o, err := OrderFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *RecordOrders) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&OrderRecord{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("update order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

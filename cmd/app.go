package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"shopflow/internal/cart"
	"shopflow/internal/config"
	"shopflow/internal/events"
	httpapi "shopflow/internal/http"
	"shopflow/internal/notify"
	"shopflow/internal/repository"
	"shopflow/internal/service"
	"shopflow/internal/storage"
)

// application собранные зависимости и функции их закрытия
type application struct {
	server  *httpapi.Server
	closers []func() error
	log     zerolog.Logger
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}

func build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *application, err error) {
	a := &application{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	products, orders, err := buildRepositories(cfg, a)
	if err != nil {
		return nil, err
	}
	slots, err := buildSlots(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	publisher, err := buildPublisher(cfg, log, a)
	if err != nil {
		return nil, err
	}

	carts, err := cart.NewRegistry(slots, cfg.Cart.Sessions, log,
		cart.WithNotifier(notify.NewLogSink(log)),
		cart.WithStockLimit(cfg.Cart.EnforceStock),
	)
	if err != nil {
		return nil, err
	}

	productsSvc := service.NewProductService(products)
	ordersSvc := service.NewOrderService(orders)
	checkoutSvc := service.NewCheckoutService(products, ordersSvc, publisher, log, 0)

	a.server = httpapi.NewServer(httpapi.Services{
		Products: productsSvc,
		Orders:   ordersSvc,
		Checkout: checkoutSvc,
		Carts:    carts,
	}, log)
	return a, nil
}

func buildRepositories(cfg *config.Config, a *application) (repository.ProductRepository, repository.OrderRepository, error) {
	switch cfg.Catalog.Backend {
	case "postgres":
		db, err := repository.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return repository.NewRecordCatalog(db), repository.NewRecordOrders(db), nil
	default:
		seed, err := repository.SeedProducts()
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMemoryStore(seed, repository.WithLatency(cfg.Catalog.Latency))
		return store, repository.NewMemoryOrders(store), nil
	}
}

func buildSlots(ctx context.Context, cfg *config.Config, a *application) (storage.Slots, error) {
	switch cfg.Cart.Storage {
	case "file":
		fs, err := storage.NewFileSlots(afero.NewOsFs(), cfg.Cart.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return storage.NewRedisSlots(client, "", cfg.Cart.TTL), nil
	default:
		return storage.NewMemorySlots(), nil
	}
}

func buildPublisher(cfg *config.Config, log zerolog.Logger, a *application) (events.Publisher, error) {
	if cfg.Events.Backend != "rabbitmq" {
		return events.NewLogPublisher(log), nil
	}
	p, err := events.NewRabbitPublisher(events.RabbitConfig{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange}, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

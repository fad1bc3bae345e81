package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"shopflow/internal/config"
	"shopflow/internal/logging"
	"shopflow/internal/repository"

	_ "shopflow/docs"
)

// @title shopflow API
// @version 1.0
// @description Product catalog, session carts, checkout and orders.
// @host localhost:9091
// @BasePath /api/v1
func main() {
	app := &cli.App{
		Name:  "shopflow",
		Usage: "storefront backend: catalog, carts, checkout, orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"SHOPFLOW_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the postgres tables and load the seed catalog",
				Action: migrate,
			},
		},
		Action: serve,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := build(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: a.server.Engine(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).
			Str("catalog", cfg.Catalog.Backend).
			Str("cart_storage", cfg.Cart.Storage).
			Str("events", cfg.Events.Backend).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-c.Context.Done():
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return err
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	db, err := repository.OpenPostgres(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	products, err := repository.SeedProducts()
	if err != nil {
		return err
	}
	if err := repository.NewRecordCatalog(db).Seed(c.Context, products); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	log.Info().Int("products", len(products)).Msg("schema migrated and catalog seeded")
	return nil
}

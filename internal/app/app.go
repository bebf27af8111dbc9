package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sirazahmedsyed/product-stock-service/internal/adapter/handler"
	"github.com/sirazahmedsyed/product-stock-service/internal/adapter/messaging"
	"github.com/sirazahmedsyed/product-stock-service/internal/adapter/storage"
	"github.com/sirazahmedsyed/product-stock-service/internal/config"
	"github.com/sirazahmedsyed/product-stock-service/internal/core/service"
	"github.com/sirazahmedsyed/product-stock-service/internal/port"
)

// App owns the server's lifecycle: it wires the ledger, cache, coordination
// engine, optional Kafka relay, and HTTP gateway, then runs until signalled.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, closeLedger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	cache, closeCache, err := a.openCache(ctx, ledger)
	if err != nil {
		return err
	}
	defer closeCache()

	stock := service.New(ledger, cache, a.logger, service.Config{
		LockTimeout:    a.cfg.Stock.LockTimeout,
		ReservationTTL: a.cfg.Stock.ReservationTTL,
		SweepInterval:  a.cfg.Stock.SweepInterval,
		EventBuffer:    a.cfg.Stock.EventBuffer,
	})
	defer stock.Close()

	if a.cfg.Kafka.Enabled {
		relay := messaging.NewEventRelay(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.logger)
		events, cancel := stock.Subscribe()
		relay.Start(events)
		defer func() {
			cancel()
			if err := relay.Close(); err != nil {
				a.logger.Error().Err(err).Msg("kafka relay close")
			}
		}()
		a.logger.Info().Strs("brokers", a.cfg.Kafka.Brokers).
			Str("topic", a.cfg.Kafka.Topic).
			Msg("kafka event relay started")
	}

	mux := http.NewServeMux()
	handler.NewHTTPHandler(stock, a.logger).Register(mux)

	server := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http server shutdown")
	}
	return nil
}

func (a *App) openLedger(ctx context.Context) (port.Ledger, func(), error) {
	dbCfg := a.cfg.Database

	switch dbCfg.Driver {
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse database dsn: %w", err)
		}
		if dbCfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(dbCfg.MaxOpenConns)
		}
		if dbCfg.MaxIdleConns > 0 {
			poolCfg.MinConns = int32(dbCfg.MaxIdleConns)
		}
		if dbCfg.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = dbCfg.ConnMaxLifetime
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.logger.Info().Msg("connected to postgres")
		return storage.NewPostgresLedger(pool), pool.Close, nil

	case "mysql":
		db, err := sql.Open("mysql", dbCfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(dbCfg.MaxOpenConns)
		db.SetMaxIdleConns(dbCfg.MaxIdleConns)
		db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		a.logger.Info().Msg("connected to mysql")
		return storage.NewMySQLLedger(db), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
}

func (a *App) openCache(ctx context.Context, ledger port.Ledger) (port.StockCache, func(), error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: a.cfg.Cache.RedisAddr,
			DB:   a.cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		a.logger.Info().Msg("connected to redis")
		return storage.NewRedisCache(client, ledger, a.cfg.Cache.TTL), func() { client.Close() }, nil

	case "memory":
		return storage.NewMemoryCache(ledger, a.cfg.Cache.TTL), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", a.cfg.Cache.Backend)
	}
}

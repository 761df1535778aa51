package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/handshake/internal/app"
	"github.com/rpggio/handshake/internal/config"
	"github.com/rpggio/handshake/internal/mq"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/postgres"
	"github.com/rpggio/handshake/internal/push"
	"github.com/rpggio/handshake/internal/sqlite"
)

// backend holds the storage backend and delivery sinks selected by configuration.
type backend struct {
	repos      app.Repositories
	dispatcher *notify.Dispatcher
	pusher     *push.RedisPusher
	checks     []func(context.Context) error
	closers    []func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	rt := &backend{}
	switch cfg.DB.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DB.DSN, postgres.PoolConfig{MaxConns: cfg.DB.MaxConns}, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		rt.repos = app.PostgresRepositories(pool)
		rt.checks = append(rt.checks, pool.Ping)
	default:
		if err := ensureDBDir(cfg.DB.Path); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
		db, err := sqlite.New(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := db.RunMigrations(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		rt.repos = app.SQLiteRepositories(db)
		rt.checks = append(rt.checks, db.Check)
	}
	return rt, nil
}

// openRuntime opens storage and the optional Redis and AMQP sinks. Sinks that are not
// configured stay nil; an unreachable broker only degrades notifications.
func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	rt, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		emitter  notify.Emitter
		pusher   notify.Pusher
		payments notify.PaymentEligibility
	)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		rt.pusher = push.NewRedisPusher(rdb)
		pusher = rt.pusher
		if err := rt.pusher.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, realtime push degraded", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	if cfg.MQ.URL != "" {
		publisher, err := mq.Dial(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			logger.Warn("message broker unreachable, notifications disabled", "error", err)
		} else {
			rt.closers = append(rt.closers, publisher.Close)
			rt.checks = append(rt.checks, brokerCheck(publisher))
			emitter = publisher
			payments = publisher
		}
	}

	rt.dispatcher = notify.NewDispatcher(emitter, pusher, payments, cfg.Notify.Timeout, logger)
	return rt, nil
}

// Ready reports the health of storage and, when configured, the message broker.
func (rt *backend) Ready(ctx context.Context) error {
	var errs []error
	for _, check := range rt.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drains pending deliveries and releases connections in reverse order.
func (rt *backend) Close() {
	if rt.dispatcher != nil {
		rt.dispatcher.Wait()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

type connectionState interface {
	IsConnected() bool
}

// brokerCheck fails once the broker connection has dropped.
func brokerCheck(conn connectionState) func(context.Context) error {
	return func(context.Context) error {
		if !conn.IsConnected() {
			return errors.New("message broker disconnected")
		}
		return nil
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/cartkit/internal/cart"
	"github.com/noah-isme/cartkit/internal/config"
	"github.com/noah-isme/cartkit/internal/discount"
	"github.com/noah-isme/cartkit/internal/events"
	"github.com/noah-isme/cartkit/internal/health"
	"github.com/noah-isme/cartkit/internal/money"
	"github.com/noah-isme/cartkit/internal/obs"
	"github.com/noah-isme/cartkit/internal/repo"
	"github.com/noah-isme/cartkit/internal/resilience"
)

const defaultTable = "shoppingcart"

// openSavedCarts selects the saved cart backend named by CART_DATABASE_CONNECTION
// and registers its readiness probe.
func openSavedCarts(ctx context.Context, cfg *config.Config, logger zerolog.Logger, probes map[string]health.Probe) (cart.SavedCarts, func(), error) {
	switch cfg.Cart.Connection {
	case "memory":
		logger.Warn().Msg("saved carts kept in process memory")
		return repo.NewMemorySavedCarts(), func() {}, nil
	case "gorm":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open gorm: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("gorm sql handle: %w", err)
		}
		store := repo.GormSavedCarts{DB: db, Table: cfg.Cart.Table}
		if cfg.Cart.AutoMigrate {
			if err := store.AutoMigrate(ctx); err != nil {
				return nil, nil, fmt.Errorf("gorm automigrate: %w", err)
			}
		}
		probes["database"] = sqlDB.PingContext
		return store, func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error().Err(err).Msg("close gorm")
			}
		}, nil
	default:
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse database config: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "cartd"

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		store := repo.PgSavedCarts{DB: pool, Table: cfg.Cart.Table}
		if cfg.Cart.AutoMigrate {
			if strings.EqualFold(cfg.Cart.Table, defaultTable) {
				err = repo.Migrate(cfg.DatabaseURL)
			} else {
				err = store.EnsureSchema(ctx)
			}
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		probes["database"] = pool.Ping
		return store, pool.Close, nil
	}
}

// newBus fans cart notifications out to the log, the Redis channel and Kafka.
// Remote notifiers sit behind their own breaker.
func newBus(cfg *config.Config, logger zerolog.Logger, client *redis.Client, metrics *resilience.Metrics) (*events.Bus, func()) {
	guard := func(target string, next events.Notifier) events.Notifier {
		return resilience.Notifier{
			Next: next,
			Breaker: resilience.NewBreaker(resilience.Settings{
				Target:       target,
				MinRequests:  cfg.Events.BreakerMinRequests,
				FailureRatio: cfg.Events.BreakerFailureRatio,
				OpenFor:      cfg.Events.BreakerOpenFor,
			}, metrics, logger),
			Attempts: cfg.Events.PublishAttempts,
			Jitter:   0.2,
		}
	}

	notifiers := []events.Notifier{events.LogNotifier{Logger: logger}}
	closers := []func() error{}
	if client != nil && cfg.Events.RedisChannel != "" {
		notifiers = append(notifiers, guard("redis", events.RedisNotifier{Client: client, Channel: cfg.Events.RedisChannel}))
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		notifiers = append(notifiers, guard("kafka", events.KafkaNotifier{Writer: writer}))
		closers = append(closers, writer.Close)
	}
	return &events.Bus{Notifiers: notifiers}, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Error().Err(err).Msg("close event writer")
			}
		}
	}
}

// cartConfig maps the environment onto the defaults shared by every cart.
func cartConfig(cfg *config.Config, logger zerolog.Logger) (cart.Config, error) {
	c := cfg.Cart
	out := cart.Config{
		Formatter: money.NewFormatter(money.Format{
			Decimals:     c.Decimals,
			DecimalPoint: c.DecimalPoint,
			ThousandsSep: c.ThousandsSeparator,
			Currency:     c.Currency,
		}),
		TaxRate:         c.TaxRate,
		TaxOnDiscount:   c.TaxOnDiscountedPrice,
		DestroyOnLogout: c.DestroyOnLogout,
		LockTTL:         c.LockTTL,
		Logger:          logger,
	}
	if c.DiscountValue > 0 {
		typ, err := discount.ParseType(c.DiscountType)
		if err != nil {
			return cart.Config{}, err
		}
		rule, err := discount.New(c.DiscountValue, typ, "")
		if err != nil {
			return cart.Config{}, err
		}
		out.Discount = &rule
	}
	return out, nil
}
